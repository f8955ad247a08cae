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

// Package capacity computes the scaling signals published for Airflow workers.
package capacity

// DefaultDesiredTasksPerWorker is the target number of active tasks per Airflow worker.
const DefaultDesiredTasksPerWorker = 5

// ComputeReservation returns a capacity provider reservation style percentage for the Airflow worker service.
//
// CapacityProviderReservation = M / N * 100, where M is the number of workers needed to run the active tasks at
// desiredTasksPerWorker and N is the number of workers already running or pending. If both are zero the
// reservation is 100. If M > 0 and N = 0 the reservation is 200 so that a target tracking policy with a target
// value of 100 scales out from zero.
//
// https://aws.amazon.com/blogs/containers/deep-dive-on-amazon-ecs-cluster-auto-scaling/
func ComputeReservation(activeTaskCount, workerCount, desiredTasksPerWorker int) float64 {
	if desiredTasksPerWorker <= 0 {
		desiredTasksPerWorker = DefaultDesiredTasksPerWorker
	}
	m := float64(activeTaskCount) / float64(desiredTasksPerWorker)
	n := float64(workerCount)
	switch {
	case m == 0 && n == 0:
		return 100
	case m > 0 && n == 0:
		return 200
	}
	return m / n * 100
}

// TasksPerWorker returns the number of active tasks per worker. Zero workers yields the task count itself.
func TasksPerWorker(activeTaskCount, workerCount float64) float64 {
	if workerCount == 0 {
		return activeTaskCount
	}
	return activeTaskCount / workerCount
}
