package transform

import (
	"strings"
	"testing"

	"bungae.dev/bungae/internal/config"
	"bungae.dev/bungae/internal/fs"
)

func newTransformer(files map[string]string) *Transformer {
	mock := fs.NewMockFS(files)
	return New(mock, config.Config{}.WithDefaults())
}

func TestTransformProductionInlinesConstantsAndDropsDevBranch(t *testing.T) {
	tr := newTransformer(map[string]string{
		"/proj/entry.js": "if (__DEV__) { require('./devOnly'); }\nexport const x = Platform.OS;\n",
	})

	got, err := tr.Transform("/proj/entry.js", Options{Dev: false, Platform: config.PlatformAndroid, Root: "/proj"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	for _, dep := range got.Dependencies {
		if dep.Specifier == "./devOnly" {
			t.Fatalf("expected the __DEV__-guarded require to be eliminated, got deps %+v", got.Dependencies)
		}
	}
	if !strings.Contains(got.Code, `"android"`) {
		t.Fatalf("expected Platform.OS inlined to the literal \"android\", got:\n%s", got.Code)
	}
	if strings.Contains(got.Code, "Platform.OS") {
		t.Fatalf("expected no Platform.OS reference to survive, got:\n%s", got.Code)
	}
	if strings.Contains(got.Code, "__DEV__") {
		t.Fatalf("expected __DEV__ replaced by its literal, got:\n%s", got.Code)
	}
}

func TestTransformDevBuildKeepsGuardedRequire(t *testing.T) {
	tr := newTransformer(map[string]string{
		"/proj/entry.js": "if (__DEV__) { require('./devOnly'); }\nexports.x = 1;\n",
	})

	got, err := tr.Transform("/proj/entry.js", Options{Dev: true, Platform: config.PlatformIOS, Root: "/proj"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(got.Dependencies) != 1 || got.Dependencies[0].Specifier != "./devOnly" {
		t.Fatalf("expected ./devOnly kept as a dependency in dev, got %+v", got.Dependencies)
	}
	if !strings.Contains(got.Code, "dependencyMap[0]") {
		t.Fatalf("expected the kept require rewritten through dependencyMap, got:\n%s", got.Code)
	}
}

func TestTransformStripsTypeScriptTypes(t *testing.T) {
	tr := newTransformer(map[string]string{
		"/proj/math.ts": "export function add(a: number, b: number): number { return a + b; }\n",
	})

	got, err := tr.Transform("/proj/math.ts", Options{Dev: true, Platform: config.PlatformIOS, Root: "/proj"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if strings.Contains(got.Code, ": number") {
		t.Fatalf("expected type annotations erased, got:\n%s", got.Code)
	}
	if !strings.Contains(got.Code, "add") {
		t.Fatalf("expected the function to survive type stripping, got:\n%s", got.Code)
	}
}

func TestTransformAcceptsAnnotatedPlainJS(t *testing.T) {
	// RN source routinely carries Flow-style annotations in plain .js
	// files; the parse must strip them rather than reject the file.
	tr := newTransformer(map[string]string{
		"/proj/greet.js": "export function greet(name: string): string { return 'hi ' + name; }\n",
	})

	got, err := tr.Transform("/proj/greet.js", Options{Dev: true, Platform: config.PlatformIOS, Root: "/proj"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if strings.Contains(got.Code, ": string") {
		t.Fatalf("expected annotations erased from plain .js, got:\n%s", got.Code)
	}
}

func TestTransformLowersJSXThroughAutomaticRuntime(t *testing.T) {
	tr := newTransformer(map[string]string{
		"/proj/el.jsx": "export const El = () => <View accessible />;\n",
	})

	got, err := tr.Transform("/proj/el.jsx", Options{Dev: true, Platform: config.PlatformIOS, Root: "/proj"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(got.Dependencies) != 1 || got.Dependencies[0].Specifier != "react/jsx-runtime" {
		t.Fatalf("expected react/jsx-runtime as the only dependency, got %+v", got.Dependencies)
	}
	if strings.Contains(got.Code, "<View") {
		t.Fatalf("expected JSX lowered to runtime calls, got:\n%s", got.Code)
	}
	if !strings.Contains(got.Code, "dependencyMap[0]") {
		t.Fatalf("expected the runtime import rewritten through dependencyMap, got:\n%s", got.Code)
	}
}

func TestTransformLowersClassFields(t *testing.T) {
	tr := newTransformer(map[string]string{
		"/proj/counter.js": "export class Counter { count = 0; #secret = 1; }\n",
	})

	got, err := tr.Transform("/proj/counter.js", Options{Dev: true, Platform: config.PlatformIOS, Root: "/proj"})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !strings.Contains(got.Code, "this.count = 0") {
		t.Fatalf("expected the public field lowered to a constructor assignment, got:\n%s", got.Code)
	}
	if strings.Contains(got.Code, "#secret") {
		t.Fatalf("expected the private field lowered away, got:\n%s", got.Code)
	}
}
