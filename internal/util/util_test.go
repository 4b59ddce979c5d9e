// Copyright 2023 Google Inc. All Rights Reserved.
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

package util

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const testParentProcessDir = "/var/generic/mfsclient"

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type UtilTest struct {
	suite.Suite
}

func TestUtilSuite(t *testing.T) {
	suite.Run(t, new(UtilTest))
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (ts *UtilTest) TestResolveWhenParentProcDirEnvNotSetAndFilePathStartsWithTilda() {
	resolvedPath, err := GetResolvedPath("~/test.txt")

	assert.Equal(ts.T(), nil, err)
	homeDir, err := os.UserHomeDir()
	assert.Equal(ts.T(), nil, err)
	assert.Equal(ts.T(), filepath.Join(homeDir, "test.txt"), resolvedPath)
}

func (ts *UtilTest) TestResolveWhenParentProcDirEnvNotSetAndRelativePath() {
	resolvedPath, err := GetResolvedPath("test.txt")

	assert.Equal(ts.T(), nil, err)
	currentWorkingDir, err := os.Getwd()
	assert.Equal(ts.T(), nil, err)
	assert.Equal(ts.T(), filepath.Join(currentWorkingDir, "test.txt"), resolvedPath)
}

func (ts *UtilTest) TestResolveWhenParentProcDirEnvNotSetAndAbsoluteFilePath() {
	resolvedPath, err := GetResolvedPath("/var/dir/test.txt")

	assert.Equal(ts.T(), nil, err)
	assert.Equal(ts.T(), "/var/dir/test.txt", resolvedPath)
}

func (ts *UtilTest) TestResolveEmptyFilePath() {
	resolvedPath, err := GetResolvedPath("")

	assert.Equal(ts.T(), nil, err)
	assert.Equal(ts.T(), "", resolvedPath)
}

// Below: tests for when MFSCLIENT_PARENT_PROCESS_DIR is set, which is how a
// daemonized (double-forked) mount resolves relative paths given by the
// original invoking shell.
func (ts *UtilTest) TestResolveWhenParentProcDirEnvSetAndFilePathStartsWithTilda() {
	os.Setenv(MFSCLIENT_PARENT_PROCESS_DIR, testParentProcessDir)
	defer os.Unsetenv(MFSCLIENT_PARENT_PROCESS_DIR)

	resolvedPath, err := GetResolvedPath("~/test.txt")

	assert.Equal(ts.T(), nil, err)
	homeDir, err := os.UserHomeDir()
	assert.Equal(ts.T(), nil, err)
	assert.Equal(ts.T(), filepath.Join(homeDir, "test.txt"), resolvedPath)
}

func (ts *UtilTest) TestResolveWhenParentProcDirEnvSetAndRelativePath() {
	os.Setenv(MFSCLIENT_PARENT_PROCESS_DIR, testParentProcessDir)
	defer os.Unsetenv(MFSCLIENT_PARENT_PROCESS_DIR)

	resolvedPath, err := GetResolvedPath("test.txt")

	assert.Equal(ts.T(), nil, err)
	assert.Equal(ts.T(), filepath.Join(testParentProcessDir, "test.txt"), resolvedPath)
}

func (ts *UtilTest) TestResolveWhenParentProcDirEnvSetAndAbsoluteFilePath() {
	os.Setenv(MFSCLIENT_PARENT_PROCESS_DIR, testParentProcessDir)
	defer os.Unsetenv(MFSCLIENT_PARENT_PROCESS_DIR)

	resolvedPath, err := GetResolvedPath("/var/dir/test.txt")

	assert.Equal(ts.T(), nil, err)
	assert.Equal(ts.T(), "/var/dir/test.txt", resolvedPath)
}

func (ts *UtilTest) TestStringifyShouldReturnAllFieldsPassedInCustomObjectAsMarshalledString() {
	sampleMap := map[string]int{
		"1": 1,
		"2": 2,
		"3": 3,
	}
	sampleNestedValue := nestedCustomType{
		SomeField: 10,
		SomeOther: sampleMap,
	}
	customObject := &customTypeForSuccess{
		Value:       "test_value",
		NestedValue: sampleNestedValue,
	}

	actual, _ := Stringify(customObject)

	expected := "{\"Value\":\"test_value\",\"NestedValue\":{\"SomeField\":10,\"SomeOther\":{\"1\":1,\"2\":2,\"3\":3}}}"
	assert.Equal(ts.T(), expected, actual)
}

func (ts *UtilTest) TestStringifyShouldReturnEmptyStringWhenMarshalErrorsOut() {
	customInstance := customTypeForError{
		value: "example",
	}

	actual, _ := Stringify(customInstance)

	expected := ""
	assert.Equal(ts.T(), expected, actual)
}

type customTypeForSuccess struct {
	Value       string
	NestedValue nestedCustomType
}
type nestedCustomType struct {
	SomeField int
	SomeOther map[string]int
}
type customTypeForError struct {
	value string
}

// MarshalJSON returns an error to simulate a failure during JSON marshaling.
func (c customTypeForError) MarshalJSON() ([]byte, error) {
	return nil, errors.New("intentional error during JSON marshaling")
}

func (ts *UtilTest) TestIsolateContextFromParentContext() {
	parentCtx, parentCtxCancel := context.WithCancel(context.Background())

	newCtx, newCtxCancel := IsolateContextFromParentContext(parentCtx)
	parentCtxCancel()

	assert.NoError(ts.T(), newCtx.Err())
	newCtxCancel()
	assert.ErrorIs(ts.T(), newCtx.Err(), context.Canceled)
}
