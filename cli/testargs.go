package cli

// This file contains argument processing utilities for separating packages,
// build-time and runtime test arguments.

import (
	"strings"
)

// Build-only flags (used while compiling the test binary)
var buildOnlyFlags = map[string]bool{
	"-tags":       true,
	"-race":       true,
	"-msan":       true,
	"-asan":       true,
	"-cover":      true,
	"-covermode":  true,
	"-coverpkg":   true,
	"-gcflags":    true,
	"-ldflags":    true,
	"-asmflags":   true,
	"-gccgoflags": true,
	"-mod":        true,
	"-modfile":    true,
	"-overlay":    true,
	"-pkgdir":     true,
	"-toolexec":   true,
	"-work":       true,
	"-exec":       true,
	"-vet":        true,
	"-p":          true,
}

// Flags taking their value as the next argument unless given as -flag=value
var valueFlags = map[string]bool{
	"-tags": true, "-covermode": true, "-coverpkg": true, "-gcflags": true,
	"-ldflags": true, "-asmflags": true, "-gccgoflags": true, "-mod": true,
	"-modfile": true, "-overlay": true, "-pkgdir": true, "-toolexec": true,
	"-exec": true, "-vet": true, "-p": true,
	"-run": true, "-skip": true, "-count": true, "-timeout": true,
	"-bench": true, "-benchtime": true, "-cpu": true, "-parallel": true,
	"-shuffle": true, "-list": true, "-fuzz": true, "-fuzztime": true,
	"-coverprofile": true, "-cpuprofile": true, "-memprofile": true,
	"-blockprofile": true, "-mutexprofile": true, "-trace": true,
	"-outputdir": true,
}

// separateTestArgs splits the arguments of the test command into package
// patterns, build flags and runtime flags. Everything after "--" is passed to
// the test binaries with -args.
func (a *App) separateTestArgs(args []string) (packages, buildArgs, runtimeArgs []string) {
	packages = []string{}
	buildArgs = []string{}
	runtimeArgs = []string{}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			if rest := args[i+1:]; len(rest) > 0 {
				runtimeArgs = append(runtimeArgs, "-args")
				runtimeArgs = append(runtimeArgs, rest...)
			}
			break
		}

		if !strings.HasPrefix(arg, "-") {
			packages = append(packages, arg)
			continue
		}

		// Accept --flag like the go tool does
		flagName := arg
		if strings.HasPrefix(flagName, "--") {
			flagName = flagName[1:]
		}
		hasValue := false
		if idx := strings.Index(flagName, "="); idx > 0 {
			flagName = flagName[:idx]
			hasValue = true
		}

		// -json is always set
		if flagName == "-json" {
			continue
		}

		group := []string{arg}
		if valueFlags[flagName] && !hasValue && i+1 < len(args) {
			i++
			group = append(group, args[i])
		}

		if buildOnlyFlags[flagName] {
			buildArgs = append(buildArgs, group...)
		} else {
			runtimeArgs = append(runtimeArgs, group...)
		}
	}

	return packages, buildArgs, runtimeArgs
}
