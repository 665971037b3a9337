package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cornjacket/marketplace-sync/internal/services/admin"
	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// mappingFile is the bulk import format:
//
//	provider: doordash
//	items:
//	  - externalItemId: sku-burger
//	    name: Classic Burger
//	    menuItemId: menu-101
type mappingFile struct {
	Provider string        `yaml:"provider"`
	Items    []mappingItem `yaml:"items"`
}

type mappingItem struct {
	ExternalItemID string `yaml:"externalItemId"`
	Name           string `yaml:"name"`
	MenuItemID     string `yaml:"menuItemId"`
	// Provider overrides the file-level provider for this item.
	Provider string `yaml:"provider"`
}

// parseMappingFile decodes and validates a mapping file. Every problem is
// reported, not just the first, so an operator can fix the file in one pass.
func parseMappingFile(r io.Reader) ([]admin.MappingInput, error) {
	var f mappingFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("mapping file is empty")
		}
		return nil, fmt.Errorf("failed to parse mapping file: %w", err)
	}

	var problems []error
	seen := make(map[string]int)
	out := make([]admin.MappingInput, 0, len(f.Items))
	for i, item := range f.Items {
		provider := item.Provider
		if provider == "" {
			provider = f.Provider
		}
		p, err := marketplace.ParseProvider(provider)
		if err != nil {
			problems = append(problems, fmt.Errorf("item %d: %w", i+1, err))
			continue
		}
		switch {
		case item.ExternalItemID == "":
			problems = append(problems, fmt.Errorf("item %d: externalItemId is required", i+1))
			continue
		case item.MenuItemID == "":
			problems = append(problems, fmt.Errorf("item %d (%s): menuItemId is required", i+1, item.ExternalItemID))
			continue
		}
		key := p.String() + "/" + item.ExternalItemID
		if prev, dup := seen[key]; dup {
			problems = append(problems, fmt.Errorf("item %d: %s duplicates item %d", i+1, key, prev))
			continue
		}
		seen[key] = i + 1

		out = append(out, admin.MappingInput{
			Provider:         p.String(),
			ExternalItemID:   item.ExternalItemID,
			ExternalItemName: item.Name,
			MenuItemID:       item.MenuItemID,
		})
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("mapping file has no items")
	}
	return out, nil
}

func mappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Manage menu item mappings",
	}
	cmd.AddCommand(mappingsImportCmd())
	return cmd
}

func mappingsImportCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import [file.yaml]",
		Short: "Create or repoint menu mappings from a YAML file",
		Long: `Import menu item mappings for one restaurant. Existing mappings for the
same marketplace item are repointed; nothing is deleted.

Examples:
  syncctl mappings import -r rest-42 doordash-menu.yaml
  syncctl mappings import -r rest-42 menu.yaml --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRestaurant(); err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			inputs, err := parseMappingFile(bytes.NewReader(raw))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "%d mappings valid; dry run, nothing written\n", len(inputs))
				return nil
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			for _, in := range inputs {
				if _, err := e.service.SaveMapping(ctx, restaurantID, in); err != nil {
					return fmt.Errorf("failed to save %s/%s: %w", in.Provider, in.ExternalItemID, err)
				}
			}
			fmt.Fprintf(out, "imported %d mappings\n", len(inputs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	return cmd
}
