package requests

// CreateSessionRequest opens a chat session pinned to one key of the provider's pool.
type CreateSessionRequest struct {
	OwnerID      string  `json:"owner_id" binding:"required,max=128"`
	Provider     string  `json:"provider" binding:"required,max=64"`
	ModelID      *string `json:"model_id,omitempty" binding:"omitempty,max=255"`
	Model        string  `json:"model,omitempty" binding:"max=255"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Title        string  `json:"title,omitempty" binding:"max=255"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type SelectKeyRequest struct {
	ModelID *string `json:"model_id,omitempty" binding:"omitempty,max=255"`
}
