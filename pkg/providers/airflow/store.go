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

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

// Task and dag run counts only include DAGs that are active and not paused. The inner query
// groups by dag_id so the join touches one row per DAG rather than one per task instance.
const (
	countTaskInstancesQuery = `SELECT SUM(t.count)::bigint
FROM (SELECT dag_id, COUNT(*) AS count FROM task_instance WHERE state IN (%s) GROUP BY dag_id) AS t
JOIN dag AS d ON d.dag_id = t.dag_id
WHERE d.is_active AND NOT d.is_paused`
	countDagRunsQuery = `SELECT SUM(r.count)::bigint
FROM (SELECT dag_id, COUNT(*) AS count FROM dag_run WHERE state = $1 GROUP BY dag_id) AS r
JOIN dag AS d ON d.dag_id = r.dag_id
WHERE d.is_active AND NOT d.is_paused`
)

type Provider interface {
	CountTaskInstances(context.Context, ...TaskInstanceState) (int64, error)
	CountDagRuns(context.Context, DagRunState) (int64, error)
}

// Store reads workload state from the Airflow metadata database
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CountTaskInstances returns the number of task instances in any of the given states
func (s *Store) CountTaskInstances(ctx context.Context, states ...TaskInstanceState) (int64, error) {
	if len(states) == 0 {
		return 0, nil
	}
	placeholders := lo.Map(states, func(_ TaskInstanceState, i int) string { return fmt.Sprintf("$%d", i+1) })
	args := lo.Map(states, func(s TaskInstanceState, _ int) any { return string(s) })
	count, err := s.scalar(ctx, fmt.Sprintf(countTaskInstancesQuery, strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return 0, fmt.Errorf("counting task instances in states %v, %w", states, err)
	}
	log.FromContext(ctx).With("states", states, "count", count).Debugf("counted task instances")
	return count, nil
}

// CountDagRuns returns the number of dag runs in the given state
func (s *Store) CountDagRuns(ctx context.Context, state DagRunState) (int64, error) {
	count, err := s.scalar(ctx, countDagRunsQuery, string(state))
	if err != nil {
		return 0, fmt.Errorf("counting dag runs in state %q, %w", state, err)
	}
	log.FromContext(ctx).With("state", state, "count", count).Debugf("counted dag runs")
	return count, nil
}

// scalar runs a single value aggregate. SUM over no rows is NULL, which reads as zero.
func (s *Store) scalar(ctx context.Context, query string, args ...any) (int64, error) {
	var sum sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return 0, err
	}
	return sum.Int64, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
