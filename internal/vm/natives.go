package vm

import (
	"fmt"
	"os"

	"github.com/kristofer/vmscript/internal/value"
)

// DefineStandardNatives installs print, readFile, and writeTextToFile
// into vm's globals table. The CLI driver calls this once before running
// any source, matching spec.md's "Natives" component: register host
// functions in the globals table before execution.
func (vm *VM) DefineStandardNatives() {
	vm.DefineNative("print", nativePrint)
	vm.DefineNative("readFile", nativeReadFile)
	vm.DefineNative("writeTextToFile", nativeWriteTextToFile)
}

// nativePrint writes each argument via Value's string formatting,
// space-separated and newline-terminated, and always returns null.
func nativePrint(_ value.Allocator, args []value.Value) value.Value {
	for i, a := range args {
		if i > 0 {
			fmt.Fprint(os.Stdout, " ")
		}
		fmt.Fprint(os.Stdout, a.String())
	}
	fmt.Fprintln(os.Stdout)
	return value.Null
}

// nativeReadFile returns the named file's contents as a string, or null
// with a stderr diagnostic on any I/O failure.
func nativeReadFile(a value.Allocator, args []value.Value) value.Value {
	if len(args) != 1 || !args[0].IsObjKind(value.ObjKindString) {
		fmt.Fprintln(os.Stderr, "readFile: expected a single string argument")
		return value.Null
	}
	path := args[0].AsString().Chars
	contents, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "readFile: %v\n", err)
		return value.Null
	}
	return value.FromObject(a.NewString(string(contents)))
}

// nativeWriteTextToFile writes args[1] followed by a newline to the path
// in args[0]. Returns Bool(true) on success, null with a stderr
// diagnostic on any failure.
func nativeWriteTextToFile(_ value.Allocator, args []value.Value) value.Value {
	if len(args) != 2 || !args[0].IsObjKind(value.ObjKindString) || !args[1].IsObjKind(value.ObjKindString) {
		fmt.Fprintln(os.Stderr, "writeTextToFile: expected two string arguments")
		return value.Null
	}
	path := args[0].AsString().Chars
	data := args[1].AsString().Chars
	if err := os.WriteFile(path, []byte(data+"\n"), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "writeTextToFile: %v\n", err)
		return value.Null
	}
	return value.Bool(true)
}
