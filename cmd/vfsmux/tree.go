package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vfsmux/vfsmux/backend/ramfs"
	"github.com/vfsmux/vfsmux/vfs"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "build a sample ramfs tree and print it via the dispatcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := vfs.New(nil)
		if _, err := ramfs.Mount(v, "/data"); err != nil {
			return err
		}
		for _, dir := range []string{"/data/etc", "/data/var", "/data/var/log"} {
			if err := v.Mkdir(dir, 0755); err != nil {
				return err
			}
		}
		for path, content := range map[string]string{
			"/data/etc/hosts":    "127.0.0.1 localhost\n",
			"/data/var/log/boot": "booted\n",
			"/data/readme":       "sample tree\n",
		} {
			fd, err := v.Open(path, os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return err
			}
			if _, err := v.Write(fd, []byte(content)); err != nil {
				return err
			}
			if err := v.Close(fd); err != nil {
				return err
			}
		}
		return printTree(cmd, v, "/data", 0)
	},
}

func printTree(cmd *cobra.Command, v *vfs.VFS, path string, depth int) error {
	dir, err := v.Opendir(path)
	if err != nil {
		return err
	}
	defer func() { _ = v.Closedir(dir) }()
	for {
		ent, err := v.Readdir(dir)
		if err != nil {
			return err
		}
		if ent == nil {
			return nil
		}
		full := path + "/" + ent.Name
		st, err := v.Stat(full)
		if err != nil {
			return err
		}
		indent := strings.Repeat("  ", depth)
		if st.Mode.IsDir() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s/\n", indent, ent.Name)
			if err := printTree(cmd, v, full, depth+1); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s (%d bytes)\n", indent, ent.Name, st.Size)
		}
	}
}
