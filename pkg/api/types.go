package api

import "shelfchat/internal/models"

// SendMessageRequest is the POST /send/{peer} body. The attachment carries
// the server/CDN reference, never the local preview.
type SendMessageRequest struct {
	Text       string             `json:"text,omitempty"`
	Attachment *models.Attachment `json:"attachment,omitempty"`
}

type sendMessageResponse struct {
	Message models.Message `json:"message"`
}

type conversationsResponse struct {
	Conversations []models.Conversation `json:"conversations"`
}

// MessagePage is one page of a peer's timeline, newest-first. HasMore is
// derived from the server-supplied page counts.
type MessagePage struct {
	Messages   []models.Message `json:"messages"`
	Page       int              `json:"page"`
	TotalPages int              `json:"totalPages"`
}

func (p MessagePage) HasMore() bool {
	return p.Page < p.TotalPages
}

type editMessageRequest struct {
	Text string `json:"text"`
}

type unreadCountResponse struct {
	Count int `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}
