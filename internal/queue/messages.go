package queue

import (
	"encoding/json"
	"fmt"
)

// Message type tags. Every queued document carries one; consumers reject
// unknown tags explicitly instead of guessing at the shape.
const (
	TypeBulkCSVJob = "bulk_csv_job"
	TypeCreateUser = "create_user"
)

// BulkCSVJob tells the ingestion stage to process one uploaded file.
// Field names are part of the wire contract.
type BulkCSVJob struct {
	Type    string `json:"type"`
	JobID   string `json:"jobId"`
	CSV     string `json:"csv"` // base64 of the raw upload
	ActorID string `json:"actorId"`
}

// CreateUser tells the provisioning stage to create one user.
type CreateUser struct {
	Type    string   `json:"type"`
	User    UserSpec `json:"user"`
	ActorID string   `json:"actorId"`
}

// UserSpec carries the raw row values; password is still plaintext here
// and is only ever hashed, never persisted as-is.
type UserSpec struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	Role       string   `json:"role"`
	AccountIDs []string `json:"accountIds"`
}

type envelope struct {
	Type string `json:"type"`
}

// Tag extracts the discriminator from an encoded message without decoding
// the full body.
func Tag(body []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("decode message envelope: %w", err)
	}
	return env.Type, nil
}

// DecodeBulkCSVJob parses a bulk_csv_job message.
func DecodeBulkCSVJob(body []byte) (BulkCSVJob, error) {
	var msg BulkCSVJob
	if err := json.Unmarshal(body, &msg); err != nil {
		return BulkCSVJob{}, fmt.Errorf("decode bulk_csv_job: %w", err)
	}
	return msg, nil
}

// DecodeCreateUser parses a create_user message.
func DecodeCreateUser(body []byte) (CreateUser, error) {
	var msg CreateUser
	if err := json.Unmarshal(body, &msg); err != nil {
		return CreateUser{}, fmt.Errorf("decode create_user: %w", err)
	}
	return msg, nil
}
