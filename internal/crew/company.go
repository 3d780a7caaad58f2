package crew

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// ResolutionError means the tenant company id could not be determined. Every
// row of a batch needs it, so the batch cannot start.
type ResolutionError struct {
	Status int
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return "Unable to resolve company_id from /api/users"
	}
	return fmt.Sprintf("Unable to resolve company_id from /api/users: %v", e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// User is the subset of an upstream user record the importer reads.
type User struct {
	ID        interface{} `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	CompanyID interface{} `json:"company_id"`
}

// ListUsers returns the records of GET /api/users.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.list(ctx, "/api/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ResolveCompanyID takes the company of the first user the token can see.
// It assumes an unfiltered listing starts with the operator's own tenant.
func (c *Client) ResolveCompanyID(ctx context.Context) (int64, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		var upstreamErr *UpstreamError
		if errors.As(err, &upstreamErr) {
			return 0, &ResolutionError{Status: upstreamErr.Status, Err: err}
		}
		return 0, &ResolutionError{Err: err}
	}
	if len(users) == 0 || users[0].CompanyID == nil {
		return 0, &ResolutionError{}
	}

	companyID, err := cast.ToInt64E(users[0].CompanyID)
	if err != nil || companyID <= 0 {
		return 0, &ResolutionError{Err: fmt.Errorf("invalid company_id %v", users[0].CompanyID)}
	}
	return companyID, nil
}

// ExistingEmails maps lower-cased emails of upstream users to their record.
func (c *Client) ExistingEmails(ctx context.Context) (map[string]User, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	emails := make(map[string]User, len(users))
	for _, u := range users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email != "" {
			emails[email] = u
		}
	}
	return emails, nil
}

var companyEndpoints = []string{"/api/customer-companies", "/api/companies"}

// FindOrCreateCompany looks a customer company up by name, creating it under
// ownerCompanyID when no endpoint knows it. Returns 0 when nothing worked.
func (c *Client) FindOrCreateCompany(ctx context.Context, name string, ownerCompanyID int64) (int64, error) {
	wanted := strings.ToLower(strings.TrimSpace(name))
	if wanted == "" {
		return 0, nil
	}

	var lastErr error
	for _, endpoint := range companyEndpoints {
		var companies []struct {
			ID   interface{} `json:"id"`
			Name string      `json:"name"`
		}
		if err := c.list(ctx, endpoint, &companies); err == nil {
			for _, company := range companies {
				if strings.ToLower(strings.TrimSpace(company.Name)) != wanted || company.ID == nil {
					continue
				}
				if id, err := cast.ToInt64E(company.ID); err == nil {
					return id, nil
				}
			}
		} else {
			lastErr = err
		}

		var created struct {
			ID   interface{} `json:"id"`
			Data struct {
				ID interface{} `json:"id"`
			} `json:"data"`
		}
		body := map[string]interface{}{"name": strings.TrimSpace(name), "company_id": ownerCompanyID}
		if err := c.Post(ctx, endpoint, body, &created); err != nil {
			lastErr = err
			continue
		}
		rawID := created.Data.ID
		if rawID == nil {
			rawID = created.ID
		}
		if id, err := cast.ToInt64E(rawID); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, lastErr
}

// list decodes either {"data": [...]} or a bare JSON array into out.
func (c *Client) list(ctx context.Context, path string, out interface{}) error {
	var raw json.RawMessage
	if err := c.Get(ctx, path, &raw); err != nil {
		return err
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(raw, out)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("unexpected listing from %s: %w", path, err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}
