package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zmcp/odata-filter-restrictions/internal/conditions"
	"github.com/zmcp/odata-filter-restrictions/internal/filterability"
	"github.com/zmcp/odata-filter-restrictions/internal/operators"
	"github.com/zmcp/odata-filter-restrictions/internal/restrictions"
	"github.com/zmcp/odata-filter-restrictions/internal/selectionvariant"
)

type restrictionsView struct {
	Kind                     string              `json:"kind"`
	Path                     string              `json:"path"`
	Scope                    string              `json:"scope,omitempty"`
	RequiredProperties       []string            `json:"requiredProperties,omitempty"`
	NonFilterableProperties  []string            `json:"nonFilterableProperties,omitempty"`
	FilterAllowedExpressions map[string][]string `json:"filterAllowedExpressions,omitempty"`
	RestrictedNavigations    []string            `json:"restrictedNavigations,omitempty"`
	Filterable               *bool               `json:"filterable,omitempty"`
	RequiresFilter           *bool               `json:"requiresFilter,omitempty"`
	Searchable               *bool               `json:"searchable,omitempty"`
	Insertable               *bool               `json:"insertable,omitempty"`
	Updatable                *bool               `json:"updatable,omitempty"`
}

func newRestrictionsView(path string, r restrictions.Restrictions) restrictionsView {
	view := restrictionsView{
		Kind:                     r.Kind.String(),
		Path:                     path,
		RequiredProperties:       r.RequiredProperties,
		NonFilterableProperties:  r.NonFilterableProperties,
		FilterAllowedExpressions: r.FilterAllowedExpressions,
		Filterable:               r.Filterable,
		RequiresFilter:           r.RequiresFilter,
		Searchable:               r.Searchable,
		Insertable:               r.Insertable,
		Updatable:                r.Updatable,
	}
	for _, nav := range r.RestrictedNavigations {
		view.RestrictedNavigations = append(view.RestrictedNavigations, nav.NavigationProperty.Path())
	}
	return view
}

func parseKind(name string) (restrictions.Kind, error) {
	kind, ok := restrictions.ParseKind(name)
	if !ok {
		return 0, fmt.Errorf("unknown restriction kind %q (use Filter, Search, Navigation, Insert or Update)", name)
	}
	return kind, nil
}

func (a *app) restrictionsCmd() *cobra.Command {
	var kindName string
	var layers bool

	cmd := &cobra.Command{
		Use:   "restrictions <path>",
		Short: "Show the merged capability restrictions of an entity set or navigation path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(kindName)
			if err != nil {
				return err
			}
			reader := &restrictions.Reader{Logger: a.logger}

			if !layers {
				return writeJSON(cmd.OutOrStdout(), newRestrictionsView(args[0], reader.Read(a.model, kind, args[0])))
			}

			var views []restrictionsView
			for _, layer := range reader.Layers(a.model, kind, args[0]) {
				view := newRestrictionsView(layer.Path, layer.Restrictions)
				view.Scope = layer.Scope.String()
				views = append(views, view)
			}
			return writeJSON(cmd.OutOrStdout(), views)
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", "Filter", "Restriction kind: Filter, Search, Navigation, Insert or Update")
	cmd.Flags().BoolVar(&layers, "layers", false, "Show every restriction layer before merging")
	return cmd
}

func (a *app) capabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities <path>",
		Short: "Show the effective capability flags of a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"path":                  path,
				"searchable":            restrictions.IsSearchable(a.model, path),
				"insertable":            restrictions.IsInsertable(a.model, path),
				"updatable":             restrictions.IsUpdatable(a.model, path),
				"requiresFilter":        restrictions.RequiresFilter(a.model, path),
				"mandatoryFilterFields": restrictions.MandatoryFilterFields(a.model, path),
			})
		},
	}
}

func (a *app) filterableCmd() *cobra.Command {
	var skipHidden bool

	cmd := &cobra.Command{
		Use:   "filterable <entity-set-path> <property-path>...",
		Short: "Decide whether properties can be filtered",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			type result struct {
				Property   string `json:"property"`
				Filterable string `json:"filterable"`
				Expression bool   `json:"expression,omitempty"`
			}
			var results []result
			for _, property := range args[1:] {
				r, err := filterability.IsPropertyFilterable(a.model, args[0], property, skipHidden)
				if err != nil {
					return err
				}
				results = append(results, result{Property: property, Filterable: r.String(), Expression: r.IsExpression()})
			}
			return writeJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", false, "Ignore UI.Hidden and UI.HiddenFilter annotations")
	return cmd
}

func (a *app) operatorsCmd() *cobra.Command {
	var edmType string

	cmd := &cobra.Command{
		Use:   "operators <entity-set-path> <property>",
		Short: "List the filter operators allowed for a property",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := operators.ForProperty(a.model, operators.Request{
				EntitySetPath:        args[0],
				Property:             args[1],
				EdmType:              edmType,
				UseSemanticDateRange: a.cfg.UseSemanticDateRange,
				Settings:             a.settings,
			})
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"property":   args[1],
				"operators":  r.Operators,
				"defaults":   r.Defaults,
				"restricted": r.Restricted,
				"effective":  r.Effective(),
			})
		},
	}
	cmd.Flags().StringVar(&edmType, "type", "", "Edm type to use instead of the metadata type")
	return cmd
}

func (a *app) requiredCmd() *cobra.Command {
	var kindName string

	cmd := &cobra.Command{
		Use:   "required <path>",
		Short: "List the required properties for create (Insert) or change (Update)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(kindName)
			if err != nil {
				return err
			}
			required := restrictions.RequiredProperties(a.model, args[0], kind)
			if required == nil {
				required = []string{}
			}
			return writeJSON(cmd.OutOrStdout(), required)
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", "Insert", "Restriction kind: Insert or Update")
	return cmd
}

func (a *app) conditionsCmd() *cobra.Command {
	var existingFile string

	cmd := &cobra.Command{
		Use:   "conditions <context-path> <selection-variant.json>",
		Short: "Convert a selection variant into filter conditions",
		Long: `Convert a selection variant into filter conditions.

The selection variant file uses the SelectionVariant exchange format; "-"
reads it from stdin. Conditions already present (--existing) are kept unless
the variant provides a non-parameter value for the same field.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			sv, err := selectionvariant.FromJSON(data)
			if err != nil {
				return err
			}

			existing := conditions.ConditionMap{}
			if existingFile != "" {
				raw, err := readInput(cmd.InOrStdin(), existingFile)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(raw, &existing); err != nil {
					return fmt.Errorf("failed to parse existing conditions: %w", err)
				}
			}

			s := conditions.NewSynthesizer(a.model, a.logger)
			s.UseSemanticDateRange = a.cfg.UseSemanticDateRange
			s.Settings = a.settings
			return writeJSON(cmd.OutOrStdout(), s.AddSelectionVariantToConditions(sv, existing, args[0]))
		},
	}
	cmd.Flags().StringVar(&existingFile, "existing", "", "JSON file with conditions to merge into")
	return cmd
}

func (a *app) externalizeCmd() *cobra.Command {
	var variantFile, now string
	var info conditions.TargetInfo

	cmd := &cobra.Command{
		Use:   "externalize <entity-set-path> <state.json>",
		Short: "Add filter bar conditions to a selection variant for navigation",
		Long: `Add filter bar conditions to a selection variant for navigation.

The state file holds {"filter": {"<field>": [{"operator": "EQ", "values": [...]}]}}.
Relative date operators are resolved against --now (YYYY-MM-DD, default today).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			var state conditions.ExternalState
			if err := json.Unmarshal(raw, &state); err != nil {
				return fmt.Errorf("failed to parse filter state: %w", err)
			}

			sv := selectionvariant.New()
			if variantFile != "" {
				data, err := readInput(cmd.InOrStdin(), variantFile)
				if err != nil {
					return err
				}
				if sv, err = selectionvariant.FromJSON(data); err != nil {
					return err
				}
			}

			helper := &conditions.MetadataPropertyHelper{Meta: a.model, EntitySetPath: args[0]}
			if now != "" {
				day, err := time.Parse(time.DateOnly, now)
				if err != nil {
					return fmt.Errorf("invalid --now date: %w", err)
				}
				helper.Now = func() time.Time { return day }
			}

			info.EntitySetPath = args[0]
			s := conditions.NewSynthesizer(a.model, a.logger)
			out := s.AddExternalStateFiltersToSelectionVariant(sv, state, info, helper)

			encoded, err := out.MarshalJSON()
			if err != nil {
				return err
			}
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, encoded, "", "  "); err != nil {
				return err
			}
			pretty.WriteByte('\n')
			_, err = pretty.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&variantFile, "variant", "", "Selection variant JSON to extend")
	cmd.Flags().StringVar(&now, "now", "", "Reference day for relative date operators")
	cmd.Flags().StringToStringVar(&info.PropertiesWithoutConflict, "without-conflict", nil,
		"Conflict free table context path per field (field=path,...)")
	return cmd
}

// readInput reads a file, or stdin for "-".
func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}
