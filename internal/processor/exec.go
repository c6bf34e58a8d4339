// Copyright 2024 The Cockroach Authors
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
//
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/cockroachdb/runpoll/internal/scanner"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Exec runs an external command for each run. The run is described to
// the command through the environment:
//
//	RUNPOLL_BUCKET, RUNPOLL_RUN_ID, RUNPOLL_KEY, RUNPOLL_LAST_MODIFIED
//
// A non-zero exit status fails the run.
type Exec struct {
	Command []string // Program and arguments; no shell is involved.
}

var _ Processor = (*Exec)(nil)

// Process implements Processor.
func (e *Exec) Process(ctx context.Context, bucket string, run scanner.RunInfo) error {
	if len(e.Command) == 0 {
		return errors.New("no command configured")
	}
	cmd := exec.CommandContext(ctx, e.Command[0], e.Command[1:]...)
	cmd.Env = append(os.Environ(),
		"RUNPOLL_BUCKET="+bucket,
		"RUNPOLL_RUN_ID="+run.RunID,
		"RUNPOLL_KEY="+run.Key,
		"RUNPOLL_LAST_MODIFIED="+run.LastModified.UTC().Format(time.RFC3339Nano),
	)
	logger := log.WithFields(log.Fields{
		"bucket":  bucket,
		"command": e.Command[0],
		"run_id":  run.RunID,
	})
	out := logger.WriterLevel(log.InfoLevel)
	defer out.Close()
	errOut := logger.WriterLevel(log.WarnLevel)
	defer errOut.Close()
	cmd.Stdout = out
	cmd.Stderr = errOut
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "command for run %s failed", run.RunID)
	}
	return nil
}
