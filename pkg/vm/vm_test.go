package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/glox/pkg/gc"
	"github.com/kristofer/glox/pkg/vm"
)

// run compiles and interprets source against a fresh VM, returning the
// result code plus everything written to stdout/stderr.
func run(t *testing.T, source string) (vm.InterpretResult, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	heap := gc.New(false, false, &stderr)
	v := vm.New(heap, vm.Config{}, strings.NewReader(""), &stdout, &stderr)
	result := v.Interpret(source)
	return result, stdout.String(), stderr.String()
}

// Positive scenarios, spec §8.
func TestArithmeticPrecedence(t *testing.T) {
	result, out, errOut := run(t, "print 1 + 2 * 3;")
	require.Equal(t, vm.InterpretOK, result, errOut)
	assert.Equal(t, "7\n", out)
}

func TestStringConcatenation(t *testing.T) {
	result, out, errOut := run(t, `var a = "he"; var b = "llo"; print a + b;`)
	require.Equal(t, vm.InterpretOK, result, errOut)
	assert.Equal(t, "hello\n", out)
}

func TestClosureCapturesUpvalueAcrossCalls(t *testing.T) {
	src := `fun make(){var x=0; fun inc(){x = x+1; return x;} return inc;} var f=make(); print f(); print f(); print f();`
	result, out, errOut := run(t, src)
	require.Equal(t, vm.InterpretOK, result, errOut)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestInheritanceCopiesMethodsAndDispatchesBoundMethod(t *testing.T) {
	src := `class A{greet(){return "hi";}} class B<A{} print B().greet();`
	result, out, errOut := run(t, src)
	require.Equal(t, vm.InterpretOK, result, errOut)
	assert.Equal(t, "hi\n", out)
}

func TestInitializerAndFieldMutation(t *testing.T) {
	src := `class C{init(n){this.n=n;} inc(){this.n=this.n+1; return this.n;}} var c=C(3); print c.inc(); print c.inc();`
	result, out, errOut := run(t, src)
	require.Equal(t, vm.InterpretOK, result, errOut)
	assert.Equal(t, "4\n5\n", out)
}

func TestBreakContinueCleanUpLocals(t *testing.T) {
	src := `for(var i=0;i<3;i=i+1){ if(i==1){continue;} if(i==2){break;} print i; } print "done";`
	result, out, errOut := run(t, src)
	require.Equal(t, vm.InterpretOK, result, errOut)
	assert.Equal(t, "0\ndone\n", out)
}

// Negative scenarios, spec §8: every one must be a RUNTIME_ERROR whose
// trace names the failing line.
func TestAddingNumberAndStringIsARuntimeError(t *testing.T) {
	result, _, errOut := run(t, `print 1 + "x";`)
	assert.Equal(t, vm.InterpretRuntimeError, result)
	assert.Contains(t, errOut, "[line 1]")
}

func TestCallingNonCallableIsARuntimeError(t *testing.T) {
	result, _, errOut := run(t, `var x = 1; x();`)
	assert.Equal(t, vm.InterpretRuntimeError, result)
	assert.Contains(t, errOut, "[line 1]")
}

func TestArityMismatchIsARuntimeError(t *testing.T) {
	result, _, errOut := run(t, `fun f(a){} f(1,2);`)
	assert.Equal(t, vm.InterpretRuntimeError, result)
	assert.Contains(t, errOut, "[line 1]")
}

func TestUndefinedVariableIsARuntimeError(t *testing.T) {
	result, _, errOut := run(t, `print zzz;`)
	assert.Equal(t, vm.InterpretRuntimeError, result)
	assert.Contains(t, errOut, "[line 1]")
}

// Running the same program twice in fresh VMs must produce byte-equal
// stdout (spec §8's idempotence property).
func TestRepeatedRunsProduceIdenticalStdout(t *testing.T) {
	src := `class Pair{init(a,b){this.a=a;this.b=b;} sum(){return this.a+this.b;}} print Pair(2,3).sum();`
	_, out1, _ := run(t, src)
	_, out2, _ := run(t, src)
	assert.Equal(t, out1, out2)
	assert.Equal(t, "5\n", out1)
}

func TestInputNativeReadsOneLine(t *testing.T) {
	var stdout, stderr bytes.Buffer
	heap := gc.New(false, false, &stderr)
	v := vm.New(heap, vm.Config{}, strings.NewReader("world\n"), &stdout, &stderr)

	result := v.Interpret(`print "hello " + input();`)
	require.Equal(t, vm.InterpretOK, result, stderr.String())
	assert.Equal(t, "hello world\n", stdout.String())
}
