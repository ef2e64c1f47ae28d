// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// Scenario is one scripted response. Match is a case-insensitive
// substring tested against the query message; the first matching
// scenario in the script wins. An empty Match matches every message,
// which makes the scenario a fallback.
type Scenario struct {
	Match    string `json:"match"`
	Response string `json:"response"`
}

// LoadScenarios reads a scenario script from disk. See ParseScenarios
// for the format.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario script: %w", err)
	}
	scenarios, err := ParseScenarios(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}

// ParseScenarios parses a scenario script: a JSON array of
// {match, response} objects, with comments and trailing commas
// allowed. The final scenario must have an empty match so every query
// gets an answer; an empty match anywhere else would shadow the
// entries after it and is rejected.
func ParseScenarios(data []byte) ([]Scenario, error) {
	var scenarios []Scenario
	if err := json.Unmarshal(jsonc.ToJSON(data), &scenarios); err != nil {
		return nil, fmt.Errorf("parsing scenario script: %w", err)
	}
	if len(scenarios) == 0 {
		return nil, errors.New("scenario script has no entries")
	}
	for index, scenario := range scenarios[:len(scenarios)-1] {
		if scenario.Match == "" {
			return nil, fmt.Errorf("scenario %d has an empty match but is not the last entry", index)
		}
	}
	if last := scenarios[len(scenarios)-1]; last.Match != "" {
		return nil, errors.New("scenario script needs a final fallback entry with an empty match")
	}
	return scenarios, nil
}

// scenarioResponses adapts a validated script to the response table.
func scenarioResponses(scenarios []Scenario) []cannedResponse {
	responses := make([]cannedResponse, 0, len(scenarios))
	for _, scenario := range scenarios {
		match := strings.ToLower(scenario.Match)
		responses = append(responses, cannedResponse{
			matches: func(lowered string) bool {
				return strings.Contains(lowered, match)
			},
			respond: fixed(scenario.Response),
		})
	}
	return responses
}
