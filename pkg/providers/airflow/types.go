/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package airflow

// TaskInstanceState is the state column of an Airflow task_instance row
type TaskInstanceState string

const (
	TaskInstanceScheduled       TaskInstanceState = "scheduled"
	TaskInstanceQueued          TaskInstanceState = "queued"
	TaskInstanceRunning         TaskInstanceState = "running"
	TaskInstanceSuccess         TaskInstanceState = "success"
	TaskInstanceRestarting      TaskInstanceState = "restarting"
	TaskInstanceFailed          TaskInstanceState = "failed"
	TaskInstanceUpForRetry      TaskInstanceState = "up_for_retry"
	TaskInstanceUpForReschedule TaskInstanceState = "up_for_reschedule"
	TaskInstanceUpstreamFailed  TaskInstanceState = "upstream_failed"
	TaskInstanceSkipped         TaskInstanceState = "skipped"
	TaskInstanceRemoved         TaskInstanceState = "removed"
	TaskInstanceDeferred        TaskInstanceState = "deferred"
)

// ActiveTaskStates are the states of tasks that occupy, or are about to occupy, a worker slot
var ActiveTaskStates = []TaskInstanceState{TaskInstanceQueued, TaskInstanceRunning}

// DagRunState is the state column of an Airflow dag_run row
type DagRunState string

const (
	DagRunQueued  DagRunState = "queued"
	DagRunRunning DagRunState = "running"
	DagRunSuccess DagRunState = "success"
	DagRunFailed  DagRunState = "failed"
)
