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

package metrics

const (
	// Namespace prefixes every self-observability metric of the binary.
	Namespace = "airflow_ecs"

	PublisherSubsystem = "publisher"

	PublisherLabel = "publisher"
	ResultLabel    = "result"
	MetricLabel    = "metric"

	ResultSuccess = "success"
	ResultError   = "error"
)

// DurationBuckets returns a []float64 of default threshold values for cycle duration histograms.
// Each returned slice is new and may be modified without impacting other bucket definitions.
func DurationBuckets() []float64 {
	return []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120}
}
