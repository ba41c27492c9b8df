// Copyright 2025 The NLP Odyssey Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "voiceapp",
	Short: "Voice-driven PDF form filling assistant",
	Long: `Voiceapp serves a browser client that fills PDF forms by voice.
It relays realtime audio between the browser and the Gemini Live API,
reconciles the model's tool calls against authoritative form state, and
renders the filled PDF once the user confirms.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}
