package handler

import (
	"custodia/internal/classification"
	dErrors "custodia/pkg/domain-errors"
)

// classifyRequest is the body of POST /classify. Fields carries the declared
// payload shape; values are ignored beyond presence.
type classifyRequest struct {
	Fields map[string]any `json:"fields"`
}

// checkRequest is the body of POST /compliance/check.
type checkRequest struct {
	UserID         string `json:"userId"`
	Classification string `json:"classification"`
	Action         string `json:"action"`
	Purpose        string `json:"purpose"`
}

func (r checkRequest) validate() error {
	if !classification.Classification(r.Classification).IsValid() {
		return dErrors.New(dErrors.CodeBadRequest, "invalid classification")
	}
	if r.Action == "" {
		return dErrors.New(dErrors.CodeBadRequest, "action is required")
	}
	return nil
}
