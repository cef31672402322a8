package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/flow"
)

// NewValidateCmd checks survey files offline, without a running server.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate survey flow files (YAML or JSON)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				ok, err := validateFile(cmd.OutOrStdout(), path)
				if err != nil {
					return err
				}
				if !ok {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d surveys failed validation", failed, len(args))
			}
			return nil
		},
	}
}

func validateFile(out io.Writer, path string) (bool, error) {
	survey, err := readSurvey(path)
	if err != nil {
		return false, err
	}
	g, err := flow.NewGraph(survey)
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", path, err)
		return false, nil
	}
	res := flow.Validate(g)
	if res.Valid() {
		fmt.Fprintf(out, "%s: survey %s ok (%d questions, %d rules)\n", path, survey.ID, g.Len(), len(survey.Rules))
		return true, nil
	}
	fmt.Fprintf(out, "%s: survey %s invalid\n%v\n", path, survey.ID, res.Err())
	return false, nil
}

// readSurvey accepts YAML (a superset of JSON) and decodes it through the
// JSON form so determinants and answers use their usual encoding.
func readSurvey(path string) (domain.Survey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Survey{}, err
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.Survey{}, fmt.Errorf("parse %s: %w", path, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return domain.Survey{}, fmt.Errorf("convert %s: %w", path, err)
	}
	var survey domain.Survey
	if err := json.Unmarshal(raw, &survey); err != nil {
		return domain.Survey{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return survey, nil
}
