// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona is a named council member.
type Persona struct {
	Name   string `yaml:"name" json:"name"`
	Prompt string `yaml:"prompt" json:"prompt"`
	Color  string `yaml:"color,omitempty" json:"color,omitempty"`
	// ModelID overrides the session model for this persona when set.
	ModelID string `yaml:"model,omitempty" json:"model,omitempty"`
}

// ModelOr returns the persona model, or fallback when none is bound.
func (p Persona) ModelOr(fallback string) string {
	if p.ModelID != "" {
		return p.ModelID
	}
	return fallback
}

// ErrPersonaNotFound is returned when a persona name does not resolve.
var ErrPersonaNotFound = errors.New("persona not found")

// DefaultPersonas is written on first use.
func DefaultPersonas() []Persona {
	return []Persona{
		{
			Name:   "Analyst",
			Prompt: "You are a careful analyst. Break the question into parts, weigh the evidence and state your conclusion with its assumptions.",
			Color:  "#5fafff",
		},
		{
			Name:   "Skeptic",
			Prompt: "You are a skeptic. Look for weak points, hidden costs and failure modes in the obvious answer before giving your own.",
			Color:  "#ff875f",
		},
		{
			Name:   "Pragmatist",
			Prompt: "You are a pragmatist. Give the simplest answer that works in practice and name the first concrete step.",
			Color:  "#87d787",
		},
	}
}

type personaFile struct {
	Personas []Persona `yaml:"personas"`
}

// LoadPersonas reads personas from a YAML file. A missing file yields the
// default set, which is also written to path.
func LoadPersonas(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		defaults := DefaultPersonas()
		if err := SavePersonas(path, defaults); err != nil {
			return defaults, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read personas: %w", err)
	}

	var f personaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse personas %s: %w", path, err)
	}
	if err := ValidatePersonas(f.Personas); err != nil {
		return nil, err
	}
	return f.Personas, nil
}

// SavePersonas writes personas as YAML.
func SavePersonas(path string, personas []Persona) error {
	if err := ValidatePersonas(personas); err != nil {
		return err
	}
	data, err := yaml.Marshal(personaFile{Personas: personas})
	if err != nil {
		return fmt.Errorf("encode personas: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create persona dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write personas: %w", err)
	}
	return nil
}

// ValidatePersonas rejects unnamed and duplicate personas.
func ValidatePersonas(personas []Persona) error {
	seen := make(map[string]bool, len(personas))
	for i, p := range personas {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return fmt.Errorf("persona %d: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("persona %q: duplicate name", p.Name)
		}
		seen[name] = true
	}
	return nil
}

// FindPersona returns the index of the persona named name (case-insensitive).
func FindPersona(personas []Persona, name string) (int, error) {
	for i, p := range personas {
		if strings.EqualFold(p.Name, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrPersonaNotFound, name)
}

// UpsertPersona replaces the persona with the same name or appends p.
func UpsertPersona(personas []Persona, p Persona) []Persona {
	out := make([]Persona, len(personas))
	copy(out, personas)
	if i, err := FindPersona(out, p.Name); err == nil {
		out[i] = p
		return out
	}
	return append(out, p)
}

// RemovePersona deletes the persona named name.
func RemovePersona(personas []Persona, name string) ([]Persona, error) {
	i, err := FindPersona(personas, name)
	if err != nil {
		return personas, err
	}
	out := make([]Persona, 0, len(personas)-1)
	out = append(out, personas[:i]...)
	return append(out, personas[i+1:]...), nil
}
