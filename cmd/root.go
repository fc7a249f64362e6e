/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

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
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mdtran",
	Short: "Markdown document translator",
	Long: `A CLI application that translates long Markdown documents with an LLM
or machine-translation backend while preserving document structure.

Documents are split into token-bounded chunks along semantic boundaries;
code blocks, tables, and lists are never cut mid-unit, and technical
content is protected with placeholders so it survives translation intact.
Interrupted translations resume from the failing chunk.

Supported services: Google Translate, Ollama, OpenRouter, OpenAI

Use "mdtran translate --help" for translation options.`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./mdtran.yaml, then $HOME/.mdtran.yaml)")
}
