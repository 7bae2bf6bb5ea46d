package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/afonot/suricata/internal/detect"
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "List the registered rule keywords",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range detect.ListKeywords() {
			kw := detect.LookupKeyword(name)
			desc := ""
			if kw != nil {
				desc = kw.Desc
			}
			fmt.Printf("%-20s %s\n", name, desc)
		}
	},
}
