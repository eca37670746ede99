package handler

import (
	"custodia/internal/consent/models"
	dErrors "custodia/pkg/domain-errors"
)

// recordRequest is the body of POST /consent.
type recordRequest struct {
	ConsentType string `json:"consentType"`
	Granted     bool   `json:"granted"`
	Source      string `json:"source"`
	Purpose     string `json:"purpose"`
}

func (r recordRequest) validate() error {
	if !models.Type(r.ConsentType).IsValid() {
		return dErrors.New(dErrors.CodeBadRequest, "invalid consentType")
	}
	if r.Source != "" && !models.Source(r.Source).IsValid() {
		return dErrors.New(dErrors.CodeBadRequest, "invalid source")
	}
	return nil
}
