package models

import dErrors "residents/pkg/domain-errors"

// AddPersonRequest is the body of POST /residents.
type AddPersonRequest struct {
	Name            *string          `json:"name"`
	Age             *uint            `json:"age"`
	ResidencyStatus *ResidencyStatus `json:"residency_status"`
}

// Validate requires all three fields to be present. Values are not checked:
// an empty name and a zero age are legitimate records.
func (r *AddPersonRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	switch {
	case r.Name == nil:
		return dErrors.New(dErrors.CodeBadRequest, "name is required")
	case r.Age == nil:
		return dErrors.New(dErrors.CodeBadRequest, "age is required")
	case r.ResidencyStatus == nil:
		return dErrors.New(dErrors.CodeBadRequest, "residency_status is required")
	}
	return nil
}

// PersonResponse is the JSON shape of a resident record.
type PersonResponse struct {
	Name            string `json:"name"`
	Age             uint   `json:"age"`
	ResidencyStatus string `json:"residency_status"`
}

// StatusResponse answers GET /residents/status.
type StatusResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// CountResponse answers GET /residents/count.
type CountResponse struct {
	Count int `json:"count"`
}

// ListResponse answers GET /residents.
type ListResponse struct {
	Residents []PersonResponse `json:"residents"`
}

// ToResponse converts a record into its JSON shape.
func ToResponse(p *Person) PersonResponse {
	return PersonResponse{
		Name:            p.Name,
		Age:             p.Age,
		ResidencyStatus: p.ResidencyStatus.String(),
	}
}
