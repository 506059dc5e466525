package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rxchain/rxchain/internal/domain/organization"
	"github.com/rxchain/rxchain/internal/platform/auth"
)

func orgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage the organization directory",
	}

	withService := func(fn func(ctx context.Context, svc *organization.Service) error) error {
		ctx := context.Background()
		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(ctx, organization.NewService(organization.NewRepoPG(pool)))
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			name, _ := cmd.Flags().GetString("name")
			typ, _ := cmd.Flags().GetString("type")
			inactive, _ := cmd.Flags().GetBool("inactive")
			return withService(func(ctx context.Context, svc *organization.Service) error {
				org := &organization.Organization{OrgID: id, Name: name, Type: organization.Type(typ), Active: !inactive}
				if err := svc.Create(ctx, org); err != nil {
					return err
				}
				fmt.Printf("Created %s organization %s (%s)\n", org.Type, org.OrgID, org.Name)
				return nil
			})
		},
	}
	createCmd.Flags().String("id", "", "Organization id, e.g. ORG-MFG-01")
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("type", "", "manufacturer, distributor or pharmacy")
	createCmd.Flags().Bool("inactive", false, "Create the organization as inactive")
	cmd.AddCommand(createCmd)

	memberCmd := &cobra.Command{
		Use:   "add-member",
		Short: "Add a user to an organization with a role",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, _ := cmd.Flags().GetString("org")
			userID, _ := cmd.Flags().GetString("user")
			rawRole, _ := cmd.Flags().GetString("role")
			role, ok := auth.ParseRole(rawRole)
			if !ok {
				return fmt.Errorf("unknown role %q", rawRole)
			}
			return withService(func(ctx context.Context, svc *organization.Service) error {
				m, err := svc.AddMember(ctx, orgID, userID, role)
				if err != nil {
					return err
				}
				fmt.Printf("Added %s to %s as %s\n", m.UserID, m.OrganizationID, m.Role)
				return nil
			})
		},
	}
	memberCmd.Flags().String("org", "", "Organization id")
	memberCmd.Flags().String("user", "", "User id (token subject)")
	memberCmd.Flags().String("role", "", "admin, manufacturer, distributor, pharmacist or consumer")
	cmd.AddCommand(memberCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, _ := cmd.Flags().GetString("type")
			return withService(func(ctx context.Context, svc *organization.Service) error {
				var (
					orgs []*organization.Organization
					err  error
				)
				if typ != "" {
					orgs, err = svc.FindByType(ctx, organization.Type(typ))
				} else {
					orgs, err = svc.List(ctx)
				}
				if err != nil {
					return err
				}
				fmt.Printf("%-20s %-14s %-8s %s\n", "ORG ID", "TYPE", "ACTIVE", "NAME")
				for _, o := range orgs {
					fmt.Printf("%-20s %-14s %-8t %s\n", o.OrgID, o.Type, o.Active, o.Name)
				}
				return nil
			})
		},
	}
	listCmd.Flags().String("type", "", "Only list active organizations of this type")
	cmd.AddCommand(listCmd)

	return cmd
}
