package configuration

import (
	"encoding/json"
	"errors"

	"github.com/rollout/rox-go/internal/model"
	"github.com/rollout/rox-go/internal/security"
)

// Parser validates and decodes a FetchResult's envelope into a
// Configuration (§4.7).
type Parser struct {
	APIKey   string
	Verifier security.SignatureVerifier
}

func NewParser(apiKey string, verifier security.SignatureVerifier) *Parser {
	return &Parser{APIKey: apiKey, Verifier: verifier}
}

type innerEnvelope struct {
	Application     string            `json:"application"`
	Experiments     []experimentJSON  `json:"experiments"`
	TargetGroups    []targetGroupJSON `json:"targetGroups"`
	RemoteVariables []json.RawMessage `json:"remoteVariables"`
}

type experimentJSON struct {
	ID                      string             `json:"_id"`
	Name                    string             `json:"name"`
	DeploymentConfiguration *deploymentConfig  `json:"deploymentConfiguration"`
	Archived                bool               `json:"archived"`
	FeatureFlags            []featureFlagJSON  `json:"featureFlags"`
	Labels                  []string           `json:"labels"`
	StickinessProperty      string             `json:"stickinessProperty"`
}

type deploymentConfig struct {
	Condition string `json:"condition"`
}

type featureFlagJSON struct {
	Name string `json:"name"`
}

type targetGroupJSON struct {
	ID        string `json:"_id"`
	Condition string `json:"condition"`
}

// Parse implements the six steps of §4.7.
func (p *Parser) Parse(result *model.FetchResult) (*model.Configuration, error) {
	if result.ParsedEnvelope.Data == "" || result.ParsedEnvelope.SignedDate == "" {
		return nil, newFetchError(UnknownError, errors.New("envelope missing data or signed_date"))
	}

	if p.Verifier != nil && !p.Verifier.Verify(result.ParsedEnvelope.Data, result.ParsedEnvelope.SignatureV0) {
		return nil, newFetchError(SignatureVerificationError, errors.New("signature verification failed"))
	}

	var inner innerEnvelope
	if err := json.Unmarshal([]byte(result.ParsedEnvelope.Data), &inner); err != nil {
		return nil, newFetchError(CorruptedJSON, err)
	}

	if inner.Application != p.APIKey {
		return nil, newFetchError(MismatchAppKey, nil)
	}

	experiments := make([]*model.ExperimentModel, 0, len(inner.Experiments))
	for _, e := range inner.Experiments {
		if e.ID == "" || e.Name == "" || e.DeploymentConfiguration == nil || e.DeploymentConfiguration.Condition == "" {
			return nil, newFetchError(CorruptedJSON, errors.New("experiment missing required field"))
		}
		flagNames := make([]string, len(e.FeatureFlags))
		for i, f := range e.FeatureFlags {
			flagNames[i] = f.Name
		}
		experiments = append(experiments, &model.ExperimentModel{
			ID:                 e.ID,
			Name:               e.Name,
			Condition:          e.DeploymentConfiguration.Condition,
			Archived:           e.Archived,
			FlagNames:          flagNames,
			Labels:             e.Labels,
			StickinessProperty: e.StickinessProperty,
		})
	}

	targetGroups := make([]*model.TargetGroupModel, 0, len(inner.TargetGroups))
	for _, g := range inner.TargetGroups {
		if g.ID == "" {
			return nil, newFetchError(CorruptedJSON, errors.New("target group missing _id"))
		}
		targetGroups = append(targetGroups, &model.TargetGroupModel{ID: g.ID, Condition: g.Condition})
	}

	return &model.Configuration{
		SignatureDate: result.ParsedEnvelope.SignedDate,
		Experiments:   experiments,
		TargetGroups:  targetGroups,
	}, nil
}
