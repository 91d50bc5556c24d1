package fixture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"testforge-agent/src/contracts"
	"testforge-agent/src/logger"
)

const existingTestFile = `#include <gtest/gtest.h>
#include "math_utils.h"

class MathUtilsTest : public ::testing::Test {
protected:
    void SetUp() override { counter = 0; }
    int counter;
};

TEST_F(MathUtilsTest, AddPositive) {
    EXPECT_EQ(add(1, 2), 3);
}

TEST(StandaloneSuite, AddNegative) {
    EXPECT_EQ(add(-1, -2), -3);
}
`

func writeTestDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "test_math_utils.cpp"), []byte(existingTestFile), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a test"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestScannerFindsFixture(t *testing.T) {
	s, err := NewScanner(writeTestDir(t), logger.NewSilentLogger())
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}

	def := s.Fixture("MathUtilsTest")
	if def == "" {
		t.Fatal("fixture MathUtilsTest not found")
	}
	if !strings.HasPrefix(def, "class MathUtilsTest") || !strings.HasSuffix(def, "};") {
		t.Errorf("fixture definition not extracted whole: %q", def)
	}
	if !strings.Contains(def, "SetUp") {
		t.Error("fixture body incomplete")
	}

	if s.Fixture("UnknownSuite") != "" {
		t.Error("unknown suite reported a fixture")
	}
}

func TestScannerExistingTests(t *testing.T) {
	s, err := NewScanner(writeTestDir(t), logger.NewSilentLogger())
	if err != nil {
		t.Fatal(err)
	}

	fn := contracts.FunctionDescriptor{Name: "add", File: "src/math_utils.c"}
	ctx := s.ExistingTests(fn)
	if ctx == nil {
		t.Fatal("no existing tests found for add")
	}
	if len(ctx.MatchedFiles) != 1 {
		t.Errorf("matched %d files, want 1", len(ctx.MatchedFiles))
	}
	if len(ctx.ExistingTestFunctions) != 2 {
		t.Errorf("found %d test functions %v, want 2", len(ctx.ExistingTestFunctions), ctx.ExistingTestFunctions)
	}
	if ctx.CoverageSummary == "" {
		t.Error("coverage summary empty")
	}

	unrelated := contracts.FunctionDescriptor{Name: "parse", File: "src/parser.c"}
	if s.ExistingTests(unrelated) != nil {
		t.Error("unrelated function matched existing tests")
	}
}

func TestScannerMissingDirectory(t *testing.T) {
	s, err := NewScanner(filepath.Join(t.TempDir(), "does-not-exist"), logger.NewSilentLogger())
	if err != nil {
		t.Fatalf("missing directory should not fail: %v", err)
	}
	if s.Fixture("Anything") != "" {
		t.Error("empty scanner reported a fixture")
	}
	if s.ExistingTests(contracts.FunctionDescriptor{Name: "add", File: "a.c"}) != nil {
		t.Error("empty scanner reported coverage")
	}
}

func TestScannerEmptyDirConfig(t *testing.T) {
	s, err := NewScanner("", logger.NewSilentLogger())
	if err != nil {
		t.Fatalf("empty dir config should not fail: %v", err)
	}
	if s.Fixture("Anything") != "" {
		t.Error("unconfigured scanner reported a fixture")
	}
}
