package docker

import (
	"fmt"

	"github.com/soryxie/code-contests/internal/domain/execution"
)

const (
	defaultWorkdir   = "/workspace"
	binaryArtifact   = "program"
	jarArtifact      = "program.jar"
	pythonSource     = "main.py"
	cppSource        = "main.cpp"
	cSource          = "main.c"
	goSource         = "main.go"
	javaSource       = "Main.java"
	pythonPathEnv    = "PYTHONPATH"
	ldLibraryPathEnv = "LD_LIBRARY_PATH"
)

// DefaultLanguages returns the built-in language catalogue.
func DefaultLanguages() map[execution.Language]LanguageConfig {
	return map[execution.Language]LanguageConfig{
		execution.LanguagePython2: {
			Image:          "python:2.7-slim",
			Workdir:        defaultWorkdir,
			SourceFile:     pythonSource,
			RunCmd:         []string{"python2", pythonSource},
			LibraryPathEnv: pythonPathEnv,
			Env:            []string{"PYTHONDONTWRITEBYTECODE=1"},
		},
		execution.LanguagePython3: {
			Image:          "python:3.12-alpine",
			Workdir:        defaultWorkdir,
			SourceFile:     pythonSource,
			RunCmd:         []string{"python3", pythonSource},
			LibraryPathEnv: pythonPathEnv,
			Env:            []string{"PYTHONDONTWRITEBYTECODE=1"},
		},
		execution.LanguageCPP: {
			Image:          "gcc:13",
			Workdir:        defaultWorkdir,
			SourceFile:     cppSource,
			CompileCmd:     []string{"g++", "-O2", "-std=c++17", "-pipe", "-o", binaryArtifact, cppSource},
			ArtifactFile:   binaryArtifact,
			RunCmd:         []string{"./" + binaryArtifact},
			LibraryPathEnv: ldLibraryPathEnv,
		},
		execution.LanguageC: {
			Image:          "gcc:13",
			Workdir:        defaultWorkdir,
			SourceFile:     cSource,
			CompileCmd:     []string{"gcc", "-O2", "-std=c11", "-pipe", "-o", binaryArtifact, cSource, "-lm"},
			ArtifactFile:   binaryArtifact,
			RunCmd:         []string{"./" + binaryArtifact},
			LibraryPathEnv: ldLibraryPathEnv,
		},
		execution.LanguageGo: {
			Image:        "golang:1.23-alpine",
			RunImage:     "alpine:3.20",
			Workdir:      defaultWorkdir,
			SourceFile:   goSource,
			CompileCmd:   []string{"go", "build", "-o", binaryArtifact, goSource},
			ArtifactFile: binaryArtifact,
			RunCmd:       []string{"./" + binaryArtifact},
			Env:          []string{"CGO_ENABLED=0", "GOCACHE=/tmp/go-cache"},
		},
		execution.LanguageJava: {
			Image:        "eclipse-temurin:17-jdk",
			Workdir:      defaultWorkdir,
			SourceFile:   javaSource,
			CompileCmd:   []string{"sh", "-c", fmt.Sprintf("javac %s && jar cfe %s Main *.class", javaSource, jarArtifact)},
			ArtifactFile: jarArtifact,
			RunCmd:       []string{"java", "-jar", jarArtifact},
		},
	}
}
