package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"
)

// DiffFile returns a unified diff of file's local changes against HEAD.
// Untracked files are diffed against nothing, since git has no record of
// them.
func (s *Service) DiffFile(ctx context.Context, path, file string) (string, error) {
	if err := checkFiles([]string{file}); err != nil {
		return "", err
	}
	var diffText string
	err := s.serialize(ctx, path, 0, func(sl Slot) error {
		status, err := statusInSlot(sl)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(file)
		for _, f := range status.Files {
			if f.Name == name && f.IsNew && !f.Staged {
				diffText, err = untrackedDiff(sl.Path(), file)
				return err
			}
		}
		out, err := sl.Run(CmdDiff, file)
		if err != nil {
			return err
		}
		diffText = out.Stdout
		return nil
	})
	return diffText, err
}

func untrackedDiff(root, file string) (string, error) {
	content, err := os.ReadFile(filepath.Join(root, file))
	if err != nil {
		return "", err
	}
	name := filepath.ToSlash(file)
	ud := difflib.UnifiedDiff{
		B:        difflib.SplitLines(string(content)),
		FromFile: "/dev/null",
		ToFile:   fmt.Sprintf("b/%s", name),
		Context:  3,
	}
	diffText, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("diff --git a/%s b/%s\nnew file mode 100644\n%s", name, name, diffText), nil
}
