// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"golang.org/x/text/language"

	"github.com/ManuGH/genplay/internal/config"
)

// Backend language codes.
const (
	LanguageChinese = "zh"
	LanguageEnglish = "en"
)

// Request is the JSON body that opens a generation stream.
type Request struct {
	Prompt        string `json:"prompt"`
	Provider      string `json:"provider"`
	VoiceProvider string `json:"voice_provider"`
	VoiceID       string `json:"voice_id"`
	Language      string `json:"language"`
	UserID        string `json:"user_id,omitempty"`
}

// NewRequest builds a request for prompt from the generation defaults.
func NewRequest(prompt string, gen config.GenerationConfig) Request {
	return Request{
		Prompt:        prompt,
		Provider:      orDefault(gen.Provider, "openrouter"),
		VoiceProvider: orDefault(gen.VoiceProvider, "openai"),
		VoiceID:       orDefault(gen.VoiceID, "shimmer"),
		Language:      NormalizeLanguage(gen.Language),
		UserID:        gen.UserID,
	}
}

// NormalizeLanguage maps a BCP-47 tag to the backend's two supported
// languages. Any Chinese variant maps to zh, everything else to en.
func NormalizeLanguage(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return LanguageEnglish
	}
	if base, _ := t.Base(); base.String() == LanguageChinese {
		return LanguageChinese
	}
	return LanguageEnglish
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
