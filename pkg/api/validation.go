package api

import "strings"

// ValidateSynthesis checks the fields a synthesis request must carry.
// It does not check the token or the engine name; those belong to the
// token service and the registry respectively.
func ValidateSynthesis(in *Input) *APIError {
	if strings.TrimSpace(in.Text) == "" {
		return NewBadRequestError("text", "text is required and must be non-empty")
	}
	if in.Engine == "" {
		return NewBadRequestError("engine", "engine is required")
	}
	if in.Speed < 0 {
		return NewBadRequestError("speed", "speed must not be negative")
	}
	return nil
}

// ValidateGenerateToken checks the fields a generate_token request must carry.
func ValidateGenerateToken(in *Input) *APIError {
	if strings.TrimSpace(in.UserID) == "" {
		return NewBadRequestError("user_id", "user_id is required")
	}
	return nil
}
