/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type LogTestSuite struct {
	suite.Suite
}

func TestLogSuite(t *testing.T) {
	suite.Run(t, new(LogTestSuite))
}

func (suite *LogTestSuite) TestGetLoggerReturnsSingleton() {
	t := suite.T()
	first := GetLogger()
	second := GetLogger()
	assert.NotNil(t, first)
	assert.Same(t, first, second)
}

func (suite *LogTestSuite) TestWithReturnsNewLogger() {
	t := suite.T()
	base := GetLogger()
	scoped := base.With(String(LoggerKeyComponentName, "Test"))
	assert.NotSame(t, base, scoped)
}

func (suite *LogTestSuite) TestFieldConstructors() {
	testCases := []struct {
		name     string
		field    Field
		expected Field
	}{
		{name: "String", field: String("k", "v"), expected: Field{Key: "k", Value: "v"}},
		{name: "Int", field: Int("k", 7), expected: Field{Key: "k", Value: 7}},
		{name: "Int64", field: Int64("k", int64(7)), expected: Field{Key: "k", Value: int64(7)}},
		{name: "Float64", field: Float64("k", 0.5), expected: Field{Key: "k", Value: 0.5}},
		{name: "Bool", field: Bool("k", true), expected: Field{Key: "k", Value: true}},
		{name: "Duration", field: Duration("k", time.Second), expected: Field{Key: "k", Value: time.Second}},
		{name: "Any", field: Any("k", []int{1}), expected: Field{Key: "k", Value: []int{1}}},
	}

	for _, tc := range testCases {
		suite.T().Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.field)
		})
	}
}

func (suite *LogTestSuite) TestErrorField() {
	t := suite.T()
	err := errors.New("boom")
	field := Error(err)
	assert.Equal(t, "error", field.Key)
	assert.Equal(t, err, field.Value)
}

func (suite *LogTestSuite) TestConvertFields() {
	t := suite.T()
	err := errors.New("boom")
	converted := convertFields([]Field{String("k", "v"), Error(err)})

	assert.Len(t, converted, 2)
	assert.Equal(t, zap.Any("k", "v"), converted[0])
	assert.Equal(t, zap.Error(err), converted[1])
}

func (suite *LogTestSuite) TestLoggingDoesNotPanic() {
	logger := GetLogger().With(String(LoggerKeyComponentName, "Test"))
	logger.Debug("debug message", Int("n", 1))
	logger.Info("info message")
	logger.Warn("warn message", Error(errors.New("boom")))
	logger.Error("error message")
	logger.Sync()
}
