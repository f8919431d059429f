package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// envFiles lists the dotenv files consulted for an environment, most
// specific first. godotenv never overrides a variable that is already set,
// so earlier files win over later ones and the process env wins over all.
func envFiles(env string) []string {
	files := []string{}
	if env = strings.TrimSpace(env); env != "" {
		files = append(files, ".env."+env+".local", ".env."+env)
	}
	return append(files, ".env.local", ".env", "cmd/.env")
}

// loadEnvFiles loads the dotenv files that exist and returns their paths.
func loadEnvFiles(paths ...string) []string {
	var loaded []string
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			continue
		}
		loaded = append(loaded, path)
	}
	return loaded
}
