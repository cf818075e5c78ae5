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

const (
	// LoggerKeyComponentName is the key used to identify the component name in the logger.
	LoggerKeyComponentName = "component"
	// LoggerKeyCacheDomain is the key used to identify the cache domain in the logger.
	LoggerKeyCacheDomain = "domain"
	// LoggerKeyAdapterName is the key used to identify the cache adapter in the logger.
	LoggerKeyAdapterName = "adapter"

	// LogLevelEnvironmentVariable is the environment variable used to configure the log level.
	LogLevelEnvironmentVariable = "CACHECORE_LOG_LEVEL"
	// DefaultLogLevel is the log level used when none is configured.
	DefaultLogLevel = "info"
)
