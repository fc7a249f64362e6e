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
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/valpere/mdtran/internal/normalize"
	"github.com/valpere/mdtran/internal/token"
)

// initConfig loads the optional config file and seeds tuning defaults. Flags
// still win over the file where both exist.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("mdtran")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MDTRAN")
	viper.AutomaticEnv()

	viper.SetDefault("chunk.max_tokens", 1000)
	viper.SetDefault("token.weights.cjk", token.DefaultWeights.CJK)
	viper.SetDefault("token.weights.word", token.DefaultWeights.Word)
	viper.SetDefault("token.weights.other", token.DefaultWeights.Other)
	viper.SetDefault("token.ratios.from_cjk", token.DefaultRatios.FromCJK)
	viper.SetDefault("token.ratios.to_cjk", token.DefaultRatios.ToCJK)
	viper.SetDefault("normalize.code_threshold", normalize.DefaultCodeThreshold)
	viper.SetDefault("normalize.unwanted_prefixes", normalize.DefaultUnwantedPrefixes)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// estimatorFromConfig builds the token estimator from the loaded config.
func estimatorFromConfig() *token.Estimator {
	w := token.Weights{
		CJK:   viper.GetFloat64("token.weights.cjk"),
		Word:  viper.GetFloat64("token.weights.word"),
		Other: viper.GetFloat64("token.weights.other"),
	}
	r := token.Ratios{
		FromCJK: viper.GetFloat64("token.ratios.from_cjk"),
		ToCJK:   viper.GetFloat64("token.ratios.to_cjk"),
	}
	return token.NewEstimatorWith(w, r)
}

// normalizerFromConfig builds the response normalizer from the loaded config.
func normalizerFromConfig() *normalize.Normalizer {
	return normalize.New(normalize.Config{
		UnwantedPrefixes: viper.GetStringSlice("normalize.unwanted_prefixes"),
		CodeThreshold:    viper.GetFloat64("normalize.code_threshold"),
	})
}
