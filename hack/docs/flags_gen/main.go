/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/cmd/commands"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("Usage: %s path/to/markdown.md", os.Args[0])
	}
	outputFileName := os.Args[1]
	mdFile, err := os.ReadFile(outputFileName)
	if err != nil {
		log.Printf("Can't read %s file: %v", os.Args[1], err)
		os.Exit(2)
	}

	genStart := "[comment]: <> (the content below is generated from hack/docs/flags_gen/main.go)"
	genEnd := "[comment]: <> (end docs generated content from hack/docs/flags_gen/main.go)"
	startDocSections := strings.Split(string(mdFile), genStart)
	if len(startDocSections) != 2 {
		log.Fatalf("expected one generated comment block start but got %d", len(startDocSections)-1)
	}
	endDocSections := strings.Split(string(mdFile), genEnd)
	if len(endDocSections) != 2 {
		log.Fatalf("expected one generated comment block end but got %d", len(endDocSections)-1)
	}
	topDoc := fmt.Sprintf("%s%s\n\n", startDocSections[0], genStart)
	bottomDoc := fmt.Sprintf("\n%s%s", genEnd, endDocSections[1])

	root := commands.NewRootCommand()
	var sb strings.Builder
	sb.WriteString("### Global flags\n\n")
	writeFlags(&sb, root.PersistentFlags())
	walk(root, func(cmd *cobra.Command) {
		if cmd == root {
			return
		}
		fmt.Fprintf(&sb, "\n### %s\n\n%s\n\n", cmd.CommandPath(), cmd.Short)
		writeFlags(&sb, cmd.LocalNonPersistentFlags())
		if cmd.HasPersistentFlags() {
			writeFlags(&sb, cmd.PersistentFlags())
		}
	})

	log.Println("writing output to", outputFileName)
	if err := os.WriteFile(outputFileName, []byte(topDoc+sb.String()+bottomDoc), 0o644); err != nil {
		log.Fatalf("unable to write generated output to %s: %v", outputFileName, err)
	}
}

func walk(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, c := range cmd.Commands() {
		if c.Hidden || c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		walk(c, fn)
	}
}

func writeFlags(sb *strings.Builder, fs *pflag.FlagSet) {
	if !fs.HasAvailableFlags() {
		sb.WriteString("_No flags._\n")
		return
	}
	sb.WriteString("| CLI Flag | Description |\n")
	sb.WriteString("|--|--|\n")
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "help" || f.Hidden {
			return
		}
		name := "\\-\\-" + f.Name
		if f.Shorthand != "" {
			name = fmt.Sprintf("\\-%s, %s", f.Shorthand, name)
		}
		if f.DefValue == "" || f.DefValue == "[]" {
			fmt.Fprintf(sb, "| %s | %s|\n", name, f.Usage)
		} else {
			fmt.Fprintf(sb, "| %s | %s (default = %s)|\n", name, f.Usage, f.DefValue)
		}
	})
}
