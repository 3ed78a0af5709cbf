package invoice

import (
	"encoding/json"
	"fmt"
	"strings"
)

// InvoiceRequest is the JSON body accepted by the upload endpoint. Type keys
// both the counter to use and the local template file to clone.
type InvoiceRequest struct {
	Type     string     `json:"type"`
	For      Issuer     `json:"for"`
	To       Contact    `json:"to"`
	DueOn    string     `json:"dueon"`
	Items    []LineItem `json:"items"`
	ToFolder string     `json:"tofolder"`
}

type Issuer struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Company Company `json:"company"`
}

type Company struct {
	Name string      `json:"name"`
	UEN  json.Number `json:"uen"`
}

type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type LineItem struct {
	Desc  string  `json:"desc"`
	Price float64 `json:"price"`
}

// ValidationError lists every missing required field. It is returned before
// any side effect occurs.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// Validate checks every field the workflow dereferences, so nothing fails
// halfway through a run over an absent value.
func (r *InvoiceRequest) Validate() error {
	var missing []string

	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	require("type", r.Type)
	require("for.name", r.For.Name)
	require("for.email", r.For.Email)
	require("for.phone", r.For.Phone)
	require("for.company.name", r.For.Company.Name)
	require("for.company.uen", r.For.Company.UEN.String())
	require("to.email", r.To.Email)
	require("to.phone", r.To.Phone)
	require("dueon", r.DueOn)
	require("tofolder", r.ToFolder)

	if len(r.Items) == 0 {
		missing = append(missing, "items")
	}
	for i, item := range r.Items {
		if item.Desc == "" {
			missing = append(missing, fmt.Sprintf("items[%d].desc", i))
		}
	}

	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// ClientLabel is the display name written into the template and used as the
// remote file name, e.g. `Acme (UEN:123)`.
func (r *InvoiceRequest) ClientLabel() string {
	return fmt.Sprintf("%s (UEN:%s)", r.For.Company.Name, r.For.Company.UEN)
}

// TemplateName is the read-only source file for this invoice type.
func (r *InvoiceRequest) TemplateName() string {
	return r.Type + ".xlsx"
}

// WorkingCopyName is the per-request mutable clone of the template.
func (r *InvoiceRequest) WorkingCopyName() string {
	return r.For.Company.Name + ".xlsx"
}
