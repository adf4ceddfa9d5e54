package turn

import (
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ortEnv struct {
	once sync.Once
	err  error
}

// ensureOrtEnv initializes the onnxruntime environment once per process.
// Initializing more than once triggers duplicate schema registration
// warnings from the runtime.
func ensureOrtEnv() error {
	ortEnv.once.Do(func() {
		switch lib := os.Getenv("ONNXRUNTIME_LIB"); {
		case lib != "":
			ort.SetSharedLibraryPath(lib)
		case runtime.GOOS == "darwin":
			// Homebrew's install location.
			ort.SetSharedLibraryPath("/opt/homebrew/lib/libonnxruntime.dylib")
		}
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}
