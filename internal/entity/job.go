package entity

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type JobStatus string

const (
	StatusStarting  JobStatus = "starting"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCanceled  JobStatus = "canceled"
)

// Valid reports whether s is one of the known lifecycle states.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusStarting, StatusRunning, StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Job is the normalized view of a task:{id} hash.
type Job struct {
	ID           string     `json:"taskId"`
	Status       JobStatus  `json:"status"`
	Progress     float64    `json:"progress"`
	Current      int        `json:"current"`
	Total        int        `json:"total"`
	URLs         []string   `json:"urls"`
	ErrorMessage *string    `json:"errorMessage"`
	CreatedAt    *int64     `json:"createdAt"` // epoch millis
	Provider     *string    `json:"provider"`
	ModelID      *string    `json:"model"`
	APIKeyName   *string    `json:"apiKeyName"`
}

// SubmitRequest is the translate procedure input.
type SubmitRequest struct {
	URLs            []string `json:"urls" validate:"required,min=1,dive,url"`
	Provider        string   `json:"provider" validate:"required"`
	EncryptedAPIKey string   `json:"encrypted_api_key" validate:"required"`
	ModelID         string   `json:"model_id" validate:"required"`
	Concurrency     int      `json:"concurrency" validate:"gt=0"`
	BatchSize       int      `json:"batch_size" validate:"gt=0"`
	FolderID        string   `json:"folder_id" validate:"required"`
	APIKeyName      string   `json:"api_key_name,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names so messages match what the caller sent
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks presence and positivity of every field; the first failure
// is reported as a *ValidationError.
func (r *SubmitRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: "request", Message: err.Error()}
	}
	return fieldError(verrs[0])
}

// WorkflowPayload is the body handed to the out-of-process worker.
type WorkflowPayload struct {
	SubmitRequest
	UserID string `json:"user_id"`
}

// ProgressUpdate is what the worker reports back. Nil fields are left untouched.
type ProgressUpdate struct {
	Status       *JobStatus `json:"status,omitempty"`
	Progress     *float64   `json:"progress,omitempty"`
	Current      *int       `json:"current,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}
