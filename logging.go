/*
 * Copyright 2026 The httpcomponents-core Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package connpool

import "github.com/sirupsen/logrus"

// Logger is satisfied by *logrus.Logger and *logrus.Entry. Callers may
// install their own via WithLogger; a Pool built without it logs to
// logrus's standard logger.
type Logger interface {
	WithField(key string, value interface{}) *logrus.Entry
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(new(discardWriter))
	return l
}()

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func defaultLogger() Logger {
	return logrus.StandardLogger()
}
