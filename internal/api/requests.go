package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

var validate = validator.New()

// CreateUserRequest registers a user.
type CreateUserRequest struct {
	UserID   string `json:"user_id" validate:"required,max=128"`
	UserName string `json:"user_name" validate:"required,max=256"`
}

// CreateTaskRequest adds a task for an existing user.
type CreateTaskRequest struct {
	UserID   string `json:"user_id" validate:"required,max=128"`
	TaskName string `json:"task_name" validate:"required,max=1024"`
}

// TaskActionRequest addresses one task of one user.
type TaskActionRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	TaskID uint   `json:"task_id" validate:"required,gt=0"`
}

// ReconcileRequest triggers a counter audit for one user, or all users when UserID is empty.
type ReconcileRequest struct {
	UserID string `json:"user_id" validate:"omitempty,max=128"`
	Repair bool   `json:"repair"`
}

func (r *CreateUserRequest) normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.UserName = strings.TrimSpace(r.UserName)
}

func (r *CreateTaskRequest) normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.TaskName = strings.TrimSpace(r.TaskName)
}

func (r *TaskActionRequest) normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
}

func (r *ReconcileRequest) normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
}

type normalizer interface {
	normalize()
}

// decodeRequest decodes a JSON body into v, trims string fields and validates it.
// An empty body is allowed and decodes to the zero value.
func decodeRequest(r *http.Request, v normalizer) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	v.normalize()
	return validateRequest(v)
}

func validateRequest(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s is %s", jsonFieldName(fe.StructField()), describeTag(fe)))
			}
			return errors.New(strings.Join(fields, "; "))
		}
		return err
	}
	return nil
}

func jsonFieldName(field string) string {
	switch field {
	case "UserID":
		return "user_id"
	case "UserName":
		return "user_name"
	case "TaskName":
		return "task_name"
	case "TaskID":
		return "task_id"
	default:
		return strings.ToLower(field)
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "max":
		return "longer than " + fe.Param()
	case "gt":
		return "not greater than " + fe.Param()
	default:
		return "invalid"
	}
}
