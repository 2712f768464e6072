package model

import (
	"time"

	"github.com/google/uuid"
)

// FactoryDescriptors returns the small set of built-in hosted-backend
// descriptors shipped by default, reproducing
// original_source/src-tauri/src/connectors/factory.rs's factory_llms so
// that the spec.md §8 scenario 1 fixture ("openai_ada", prompt "hi") is
// available out of the box.
func FactoryDescriptors() []*Descriptor {
	now := time.Now().UTC()
	return []*Descriptor{
		{
			ID:           "openai_ada",
			FamilyID:     "gpt",
			Organization: "openai",
			Name:         "Ada",
			Homepage:     "https://openai.com",
			Description:  "OpenAI's fastest, cheapest completion model.",
			License:      "proprietary",
			DownloadedReason: "factory",
			DownloadedDate:   now,
			Capabilities: map[string]int{"completion": 1, "embedding": 0, "chat": 0},
			Tags:         []string{"factory", "hosted"},
			Requirements: "network",
			UUID:         uuid.New(),
			URL:          "https://api.openai.com/v1/completions",
			Backend:      BackendHosted,
			Config: map[string]any{
				"endpoint": "https://api.openai.com/v1/completions",
				"model":    "ada",
			},
			Parameters:            map[string]any{"max_tokens": 64, "temperature": 0.7},
			UserParameters:        []string{"max_tokens", "temperature"},
			SessionParameters:     map[string]any{},
			UserSessionParameters: []string{},
		},
		{
			ID:           "openai_gpt4",
			FamilyID:     "gpt",
			Organization: "openai",
			Name:         "GPT-4",
			Homepage:     "https://openai.com",
			Description:  "OpenAI's flagship chat-completion model.",
			License:      "proprietary",
			DownloadedReason: "factory",
			DownloadedDate:   now,
			Capabilities: map[string]int{"completion": 1, "embedding": 0, "chat": 1},
			Tags:         []string{"factory", "hosted"},
			Requirements: "network",
			UUID:         uuid.New(),
			URL:          "https://api.openai.com/v1/chat/completions",
			Backend:      BackendHosted,
			Config: map[string]any{
				"endpoint": "https://api.openai.com/v1/chat/completions",
				"model":    "gpt-4",
			},
			Parameters:            map[string]any{"max_tokens": 512, "temperature": 0.7},
			UserParameters:        []string{"max_tokens", "temperature"},
			SessionParameters:     map[string]any{},
			UserSessionParameters: []string{},
		},
	}
}
