package main

import (
	"fmt"

	"libstor/internal/app"

	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage tags of a library",
}

var tagAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")

		a, err := newApp(cmd, "TagAdd", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		tag, err := a.CreateTag(cmd.Context(), args[0], parent)
		if err != nil {
			return err
		}
		fmt.Printf("Created tag #%d %s\n", tag.ID, tag.Name)
		return nil
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "TagList", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		tags, err := a.ListTags(cmd.Context())
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			fmt.Println("No tags.")
			return nil
		}
		names := make(map[int64]string, len(tags))
		for _, t := range tags {
			names[t.ID] = t.Name
		}
		for _, t := range tags {
			if t.ParentID == 0 {
				fmt.Printf("#%d  %s\n", t.ID, t.Name)
				continue
			}
			fmt.Printf("#%d  %s  (in %s)\n", t.ID, t.Name, names[t.ParentID])
		}
		return nil
	},
}

var tagRmCmd = &cobra.Command{
	Use:   "rm NAME",
	Short: "Delete a tag and its assignments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "TagRemove", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteTag(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted tag %s\n", args[0])
		return nil
	},
}

var tagAssignCmd = &cobra.Command{
	Use:   "assign NAME FILE",
	Short: "Tag a file (path relative to the library root)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "TagAssign", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		return a.AssignTag(cmd.Context(), args[0], args[1])
	},
}

var tagUnassignCmd = &cobra.Command{
	Use:   "unassign NAME FILE",
	Short: "Remove a tag from a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "TagUnassign", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		return a.UnassignTag(cmd.Context(), args[0], args[1])
	},
}

var tagFilesCmd = &cobra.Command{
	Use:   "files NAME",
	Short: "List the files carrying a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "TagFiles", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.FilesForTag(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("%6d  %s  %s\n", f.ID, f.Hash[:12], f.Path())
		}
		return nil
	},
}

var tagShowCmd = &cobra.Command{
	Use:   "show FILE",
	Short: "List the tags of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "TagShow", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		tags, err := a.TagsForFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, t := range tags {
			fmt.Println(t.Name)
		}
		return nil
	},
}

func init() {
	tagCmd.PersistentFlags().StringP("path", "p", "", "Library root")
	tagCmd.PersistentFlags().String("db", "", "Store file (default derived from the root)")
	tagAddCmd.Flags().String("parent", "", "Name of the parent tag")

	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagRmCmd)
	tagCmd.AddCommand(tagAssignCmd)
	tagCmd.AddCommand(tagUnassignCmd)
	tagCmd.AddCommand(tagFilesCmd)
	tagCmd.AddCommand(tagShowCmd)
}
