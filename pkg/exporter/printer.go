package exporter

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"unleash/pkg/core"
	"unleash/pkg/lookup"
	"unleash/pkg/types"
)

// PrintObject 以可读形式输出对象 (类似 git cat-file -p)
// blob 原样输出内容
func PrintObject(ctx context.Context, g lookup.Getter, hash types.Hash, w io.Writer) error {
	obj, err := g.Get(ctx, hash)
	if err != nil {
		return err
	}

	switch o := obj.(type) {
	case *core.Commit:
		return printCommit(o, w)
	case *core.Tree:
		return printTree(o, w)
	case *core.Tag:
		return printTag(o, w)
	case *core.Blob:
		_, err := w.Write(o.Bytes())
		return err
	default:
		return fmt.Errorf("unknown object type: %s", obj.Type())
	}
}

func printCommit(c *core.Commit, w io.Writer) error {
	fmt.Fprintf(w, "Type:      Commit\n")
	fmt.Fprintf(w, "Hash:      %s\n", c.ID())
	fmt.Fprintf(w, "Tree:      %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(w, "Parent:    %s\n", p)
	}
	fmt.Fprintf(w, "Author:    %s (%s)\n", c.Author, c.AuthorTime.Format(time.RFC3339))
	fmt.Fprintf(w, "Committer: %s (%s)\n", c.Committer, c.CommitTime.Format(time.RFC3339))
	if c.EncodingName() != core.DefaultEncoding {
		fmt.Fprintf(w, "Encoding:  %s\n", c.Encoding)
	}
	_, err := fmt.Fprintf(w, "\n%s\n", c.Message)
	return err
}

func printTree(t *core.Tree, w io.Writer) error {
	// 使用 tabwriter 对齐输出 (像 git ls-tree)
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, e := range t.Entries() {
		fmt.Fprintf(tw, "%06o\t%s\t%s\t%s\n", uint32(e.Mode), entryKind(e), e.Hash, e.Name)
	}
	return tw.Flush()
}

func printTag(t *core.Tag, w io.Writer) error {
	fmt.Fprintf(w, "Type:    Tag\n")
	fmt.Fprintf(w, "Name:    %s\n", t.Name)
	fmt.Fprintf(w, "Object:  %s (%s)\n", t.Object, t.ObjType)
	if t.Tagger != "" {
		fmt.Fprintf(w, "Tagger:  %s\n", t.Tagger)
	}
	_, err := fmt.Fprintf(w, "\n%s\n", t.Message)
	return err
}

func entryKind(e core.TreeEntry) string {
	switch {
	case e.IsDir():
		return "tree"
	case e.Mode == core.ModeSubmodule:
		return "commit"
	default:
		return "blob"
	}
}
