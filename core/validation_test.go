package core

import (
	"errors"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		wantErr error
	}{
		{
			name: "valid document",
			doc: &Document{
				Id:       1,
				Filename: "notes.txt",
				Contents: "Hello world",
			},
			wantErr: nil,
		},
		{
			name: "valid document without metadata",
			doc: &Document{
				Contents: "Just text",
			},
			wantErr: nil,
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: ErrInvalidDocument,
		},
		{
			name: "empty contents",
			doc: &Document{
				Filename: "empty.txt",
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "whitespace-only contents",
			doc: &Document{
				Contents: "   \n\t  ",
			},
			wantErr: ErrEmptyContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDocument() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDocument() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTurn(t *testing.T) {
	tests := []struct {
		name    string
		turn    *ConversationTurn
		wantErr error
	}{
		{
			name: "valid user turn",
			turn: &ConversationTurn{
				SessionId: "s1",
				Role:      RoleUser,
				Contents:  "What is a lighthouse?",
			},
			wantErr: nil,
		},
		{
			name: "valid assistant turn with citations",
			turn: &ConversationTurn{
				SessionId: "s1",
				Role:      RoleAssistant,
				Contents:  "A lighthouse is a tower with a light.",
				Citations: []Citation{{ChunkId: 7, DocumentId: 3}},
			},
			wantErr: nil,
		},
		{
			name:    "nil turn",
			turn:    nil,
			wantErr: ErrInvalidTurn,
		},
		{
			name: "empty contents",
			turn: &ConversationTurn{
				SessionId: "s1",
				Role:      RoleUser,
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "invalid role",
			turn: &ConversationTurn{
				SessionId: "s1",
				Role:      Role(42),
				Contents:  "hello",
			},
			wantErr: ErrInvalidRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTurn(tt.turn)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateTurn() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTurn() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsTransientAndPermanent(t *testing.T) {
	transient := errors.Join(ErrTransient, errors.New("dial tcp: timeout"))
	if !IsTransient(transient) {
		t.Errorf("IsTransient() = false for wrapped ErrTransient")
	}
	if IsPermanent(transient) {
		t.Errorf("IsPermanent() = true for transient error")
	}

	permanent := errors.Join(ErrPermanent, errors.New("input rejected"))
	if !IsPermanent(permanent) {
		t.Errorf("IsPermanent() = false for wrapped ErrPermanent")
	}
	if IsTransient(permanent) {
		t.Errorf("IsTransient() = true for permanent error")
	}

	if !IsPermanent(ErrValidation) {
		t.Errorf("IsPermanent() = false for validation error")
	}
}
