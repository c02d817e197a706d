package ideagen

import (
	"fmt"
	"strings"
)

// NotSpecified is the documented default for optional free-text fields the
// submitter left blank. The renderer relies on it never being empty.
const NotSpecified = "not specified"

// cleanRawIdea performs the intake part of validation: required fields must
// be present, everything else gets a documented default. It never calls the
// text-generation backend.
func cleanRawIdea(raw RawIdeaInput) (ValidatedIdea, error) {
	title := strings.TrimSpace(raw.Title)
	desc := strings.TrimSpace(raw.ShortDescription)
	category := strings.TrimSpace(raw.Category)
	problem := strings.TrimSpace(raw.ProblemSolved)
	if title == "" {
		return ValidatedIdea{}, fmt.Errorf("title is required")
	}
	if desc == "" {
		return ValidatedIdea{}, fmt.Errorf("shortDescription is required")
	}
	if category == "" {
		return ValidatedIdea{}, fmt.Errorf("category is required")
	}
	if problem == "" {
		return ValidatedIdea{}, fmt.Errorf("problemSolved is required")
	}
	if len(desc) > MaxDescriptionChars {
		desc = desc[:MaxDescriptionChars]
	}

	return ValidatedIdea{
		Title:               title,
		Description:         desc,
		Category:            strings.ToLower(category),
		ProblemSolved:       problem,
		Technologies:        cleanList(raw.Technologies),
		Platform:            defaultText(raw.Platform),
		TargetSegment:       defaultText(raw.TargetSegment),
		Monetization:        cleanList(raw.Monetization),
		TargetMarkets:       cleanList(raw.TargetMarkets),
		Regulations:         cleanList(raw.Regulations),
		ComplianceNotes:     defaultText(raw.ComplianceNotes),
		UniqueValue:         defaultText(raw.UniqueValue),
		ImplementationLevel: defaultText(raw.ImplementationLevel),
		RepositoryLink:      strings.TrimSpace(raw.RepositoryLink),
		Competitors:         defaultText(raw.Competitors),
		TeamSize:            defaultText(raw.TeamSize),
		Timeline:            defaultText(raw.Timeline),
		Budget:              defaultText(raw.Budget),
		OpenQuestions:       defaultText(raw.OpenQuestions),
	}, nil
}

func defaultText(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return NotSpecified
	}
	return v
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
