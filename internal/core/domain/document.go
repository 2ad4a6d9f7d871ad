package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Credentials struct {
	AuthURL    string
	ProcessURL string
	Username   string
	Password   string
}

// Validate reports every missing option in a single ErrConfig error.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.AuthURL) == "" {
		missing = append(missing, "auth_url")
	}
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(c.Password) == "" {
		missing = append(missing, "password")
	}
	if strings.TrimSpace(c.ProcessURL) == "" {
		missing = append(missing, "process_url")
	}
	if len(missing) == 0 {
		return nil
	}
	return WrapError(ErrConfig, "validate credentials", fmt.Errorf("missing options: %s", strings.Join(missing, ", ")))
}

type Token struct {
	Value     string    `json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired is false for tokens issued without an expiry.
func (t Token) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}

type Filters struct {
	SupplierTaxID string `json:"supplier,omitempty"`
	CustomerTaxID string `json:"customer,omitempty"`
	TestMode      bool   `json:"test,omitempty"`
}

type ProcessingRequest struct {
	Filename string
	PDF      []byte
	Filters  Filters
}

func (r ProcessingRequest) Validate() error {
	if len(r.PDF) == 0 {
		return WrapError(ErrInvalidInput, "validate request", errors.New("empty pdf upload"))
	}
	return nil
}

type DocumentHeader struct {
	Number string `json:"number"`
	Type   string `json:"type"`
	Date   string `json:"date"`
}

type Party struct {
	LegalName string `json:"legal_name"`
	TaxID     string `json:"tax_id"`
}

type DocumentResult struct {
	Document  DocumentHeader `json:"document"`
	Supplier  Party          `json:"supplier"`
	Customer  Party          `json:"customer"`
	LineItems []LineItem     `json:"line_items"`
}

type PDFInfo struct {
	Pages     int   `json:"pages"`
	SizeBytes int64 `json:"size_bytes"`
}
