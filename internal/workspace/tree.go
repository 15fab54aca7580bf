package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Node is one entry in a project tree.
type Node struct {
	Name     string
	Dir      bool
	Children []*Node
}

// BuildTree walks root up to depth levels. Skipped directories and ignored
// paths are left out.
func BuildTree(root string, depth int) (*Node, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	node := &Node{Name: filepath.Base(root), Dir: true}
	if err := fill(node, root, "", ParseIgnore(root), depth); err != nil {
		return nil, err
	}
	return node, nil
}

func fill(node *Node, dir, rel string, ignore []string, depth int) error {
	if depth <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		// directories first, then by name
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	for _, e := range entries {
		childRel := e.Name()
		if rel != "" {
			childRel = rel + "/" + e.Name()
		}
		if e.IsDir() && skipDirs[e.Name()] {
			continue
		}
		if isIgnored(childRel, ignore) {
			continue
		}
		child := &Node{Name: e.Name(), Dir: e.IsDir()}
		if e.IsDir() {
			if err := fill(child, filepath.Join(dir, e.Name()), childRel, ignore, depth-1); err != nil {
				return err
			}
		}
		node.Children = append(node.Children, child)
	}
	return nil
}

// Tree renders the project layout of root as a text tree.
func Tree(root string, depth int) (string, error) {
	node, err := BuildTree(root, depth)
	if err != nil {
		return "", err
	}
	return node.Name + "/\n" + FormatTree(node, ""), nil
}

// FormatTree produces a text tree view of node's children.
func FormatTree(node *Node, prefix string) string {
	var sb strings.Builder
	for i, child := range node.Children {
		last := i == len(node.Children)-1
		connector, next := "├── ", "│   "
		if last {
			connector, next = "└── ", "    "
		}
		name := child.Name
		if child.Dir {
			name += "/"
		}
		sb.WriteString(prefix + connector + name + "\n")
		sb.WriteString(FormatTree(child, prefix+next))
	}
	return sb.String()
}
