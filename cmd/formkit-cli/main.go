// Command formkit-cli fills an entity form interactively from a YAML field
// catalog, honoring visibility and requiredness, and either prints the
// payload or submits it to a remote CMS API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/bandfolio/formkit/pkg/asset"
	"github.com/bandfolio/formkit/pkg/client"
	"github.com/bandfolio/formkit/pkg/field"
	"github.com/bandfolio/formkit/pkg/form"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "formkit-cli",
		Short:         "Fill and submit entity forms from a field catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(fillCommand())
	root.AddCommand(entitiesCommand())
	return root
}

func entitiesCommand() *cobra.Command {
	var catalogDir string

	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List entity kinds declared in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := field.LoadFS(os.DirFS(catalogDir))
			if err != nil {
				return err
			}
			for _, kind := range catalog.Entities() {
				fmt.Fprintln(cmd.OutOrStdout(), kind)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogDir, "catalog", "catalog", "directory holding YAML field catalogs")
	return cmd
}

func fillCommand() *cobra.Command {
	var (
		catalogDir string
		entity     string
		apiBase    string
		tenant     string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Interactively fill one entity's form and submit it",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := field.LoadFS(os.DirFS(catalogDir))
			if err != nil {
				return err
			}
			specs, ok := catalog.Entity(entity)
			if !ok {
				return fmt.Errorf("entity %q not declared in catalog %s", entity, catalogDir)
			}

			persister, assets, err := collaborators(cmd, apiBase, tenant, dryRun)
			if err != nil {
				return err
			}

			opts := []form.Option{
				form.WithResetMode(form.ResetToInitial),
			}
			if assets != nil {
				opts = append(opts, form.WithAssets(asset.New(assets, asset.WithTenant(tenant))))
			}
			f, err := form.New(specs, persister, opts...)
			if err != nil {
				return err
			}

			if err := promptAll(f, specs); err != nil {
				return err
			}

			if err := f.Submit(context.Background()); err != nil {
				var verrs form.ValidationErrors
				if errors.As(err, &verrs) {
					for name, message := range verrs {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", name, message)
					}
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogDir, "catalog", "catalog", "directory holding YAML field catalogs")
	cmd.Flags().StringVar(&entity, "entity", "", "entity kind to fill (required)")
	cmd.Flags().StringVar(&apiBase, "api", "", "CMS API base URL")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant (band) identifier")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the payload instead of submitting")
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}

func collaborators(cmd *cobra.Command, apiBase, tenant string, dryRun bool) (form.Persister, asset.Store, error) {
	if dryRun || apiBase == "" {
		printer := form.PersisterFunc(func(_ context.Context, payload map[string]any) (map[string]any, error) {
			encoded, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return nil, err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return payload, nil
		})
		return printer, nil, nil
	}

	api, err := client.New(apiBase, tenant)
	if err != nil {
		return nil, nil, err
	}
	return api.Persister("entities", ""), api.Assets(), nil
}

// promptAll walks the specs in declaration order, re-evaluating visibility
// after every answer so dependent fields appear as soon as their conditions
// hold.
func promptAll(f *form.Form, specs []field.Spec) error {
	for _, spec := range specs {
		if spec.Name == "" || spec.Kind == field.KindDivider {
			continue
		}
		effects := field.Evaluate(specs, f.Values())
		if !effects[spec.Name].Visible {
			continue
		}
		if err := promptOne(f, spec, effects[spec.Name].Required); err != nil {
			return err
		}
	}
	return nil
}

func promptOne(f *form.Form, spec field.Spec, required bool) error {
	label := spec.Label
	if label == "" {
		label = spec.Name
	}
	if required {
		label += " *"
	}

	switch spec.Kind {
	case field.KindToggle:
		value := false
		if initial, ok := spec.Initial.(bool); ok {
			value = initial
		}
		if err := survey.AskOne(&survey.Confirm{Message: label, Default: value}, &value); err != nil {
			return err
		}
		f.Set(spec.Name, value)

	case field.KindSelect:
		var value string
		if err := survey.AskOne(&survey.Select{Message: label, Options: choiceValues(spec.Choices)}, &value); err != nil {
			return err
		}
		f.Set(spec.Name, value)

	case field.KindMultiSelect:
		var values []string
		if err := survey.AskOne(&survey.MultiSelect{Message: label, Options: choiceValues(spec.Choices)}, &values); err != nil {
			return err
		}
		f.Set(spec.Name, values)

	case field.KindNumber:
		var raw string
		if err := survey.AskOne(&survey.Input{Message: label}, &raw); err != nil {
			return err
		}
		if strings.TrimSpace(raw) != "" {
			value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return fmt.Errorf("field %q: %q is not a number", spec.Name, raw)
			}
			f.Set(spec.Name, value)
		}

	case field.KindImage, field.KindVideo:
		var path string
		if err := survey.AskOne(&survey.Input{Message: label + " (file path)"}, &path); err != nil {
			return err
		}
		path = strings.TrimSpace(path)
		if path == "" {
			return nil
		}
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("field %q: %w", spec.Name, err)
		}
		info, err := file.Stat()
		if err != nil {
			return fmt.Errorf("field %q: %w", spec.Name, err)
		}
		f.SetAssetFile(spec.Name, asset.File{
			Name:    info.Name(),
			Content: file,
			Size:    info.Size(),
		})

	case field.KindTimePair, field.KindPricePair:
		members := map[string]any{}
		for _, member := range spec.Group {
			var value string
			if err := survey.AskOne(&survey.Input{Message: label + ": " + member}, &value); err != nil {
				return err
			}
			members[member] = value
		}
		f.Set(spec.Name, members)

	case field.KindTextBlock:
		var value string
		if err := survey.AskOne(&survey.Multiline{Message: label}, &value); err != nil {
			return err
		}
		f.Set(spec.Name, value)

	default:
		var value string
		if err := survey.AskOne(&survey.Input{Message: label}, &value); err != nil {
			return err
		}
		f.Set(spec.Name, value)
	}
	return nil
}

func choiceValues(choices []field.Choice) []string {
	values := make([]string, 0, len(choices))
	for _, choice := range choices {
		values = append(values, choice.Value)
	}
	return values
}
