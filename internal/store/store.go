// Package store persists Application/Actor/replica records across
// restarts, generalizing the teacher's pgx-backed internal/db package
// from team/API-key rows to the Application/Actor/replica layout named
// in the external-interfaces persisted-state contract.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowmesh/placement-core/internal/domain"
)

// ApplicationRecord is the persisted shape of one Application: name,
// origin node, actor/link name maps, and deploy info, matching
// `application-<id>` from the persisted state layout.
type ApplicationRecord struct {
	ID           string
	Name         string
	Namespace    string
	OriginNodeID string
	Actors       map[string]string
	Links        map[string]string
	DeployInfo   domain.DeployInfo
}

// Store is the pgx-backed persistence layer for Application/Actor/
// replica records.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	s := &Store{pool: pool}

	if err := s.migrate(ctx); err != nil {
		pool.Close()

		return nil, err
	}

	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS applications (
	id text PRIMARY KEY,
	name text NOT NULL,
	namespace text NOT NULL,
	origin_node_id text NOT NULL,
	actors_name_map jsonb NOT NULL,
	links_name_map jsonb NOT NULL,
	deploy_info jsonb NOT NULL
);
CREATE TABLE IF NOT EXISTS actors (
	id text PRIMARY KEY,
	application_id text NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
	data jsonb NOT NULL
);
CREATE TABLE IF NOT EXISTS replicas (
	replication_id text PRIMARY KEY,
	actor_ids jsonb NOT NULL
);
`
	_, err := s.pool.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}

	return nil
}

// SaveApplication upserts the `application-<id>` record.
func (s *Store) SaveApplication(ctx context.Context, rec ApplicationRecord) error {
	actors, err := json.Marshal(rec.Actors)
	if err != nil {
		return err
	}

	links, err := json.Marshal(rec.Links)
	if err != nil {
		return err
	}

	deployInfo, err := json.Marshal(rec.DeployInfo)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO applications (id, name, namespace, origin_node_id, actors_name_map, links_name_map, deploy_info)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	namespace = EXCLUDED.namespace,
	origin_node_id = EXCLUDED.origin_node_id,
	actors_name_map = EXCLUDED.actors_name_map,
	links_name_map = EXCLUDED.links_name_map,
	deploy_info = EXCLUDED.deploy_info
`
	_, err = s.pool.Exec(ctx, q, rec.ID, rec.Name, rec.Namespace, rec.OriginNodeID, actors, links, deployInfo)
	if err != nil {
		return fmt.Errorf("store: save application %s: %w", rec.ID, err)
	}

	return nil
}

// LoadApplication reads back `application-<id>`, found=false if absent.
func (s *Store) LoadApplication(ctx context.Context, id string) (ApplicationRecord, bool, error) {
	const q = `
SELECT name, namespace, origin_node_id, actors_name_map, links_name_map, deploy_info
FROM applications WHERE id = $1
`
	row := s.pool.QueryRow(ctx, q, id)

	var (
		rec                    ApplicationRecord
		actorsRaw, linksRaw    []byte
		deployInfoRaw          []byte
	)

	rec.ID = id

	if err := row.Scan(&rec.Name, &rec.Namespace, &rec.OriginNodeID, &actorsRaw, &linksRaw, &deployInfoRaw); err != nil {
		if isNoRows(err) {
			return ApplicationRecord{}, false, nil
		}

		return ApplicationRecord{}, false, fmt.Errorf("store: load application %s: %w", id, err)
	}

	if err := json.Unmarshal(actorsRaw, &rec.Actors); err != nil {
		return ApplicationRecord{}, false, err
	}

	if err := json.Unmarshal(linksRaw, &rec.Links); err != nil {
		return ApplicationRecord{}, false, err
	}

	if err := json.Unmarshal(deployInfoRaw, &rec.DeployInfo); err != nil {
		return ApplicationRecord{}, false, err
	}

	return rec, true, nil
}

// DeleteApplication removes `application-<id>` and its actor rows.
func (s *Store) DeleteApplication(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete application %s: %w", id, err)
	}

	return nil
}

// SaveActor upserts `actor-<id>` metadata.
func (s *Store) SaveActor(ctx context.Context, appID string, actor domain.Actor) error {
	data, err := json.Marshal(actor)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO actors (id, application_id, data) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data
`
	_, err = s.pool.Exec(ctx, q, actor.ID, appID, data)
	if err != nil {
		return fmt.Errorf("store: save actor %s: %w", actor.ID, err)
	}

	return nil
}

// ReplicaSet returns the actor ids under `replica-<replicationID>`.
func (s *Store) ReplicaSet(ctx context.Context, replicationID string) ([]string, error) {
	const q = `SELECT actor_ids FROM replicas WHERE replication_id = $1`

	row := s.pool.QueryRow(ctx, q, replicationID)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if isNoRows(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("store: replica set %s: %w", replicationID, err)
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}

	return ids, nil
}

// AddReplica appends actorID to `replica-<replicationID>`.
func (s *Store) AddReplica(ctx context.Context, replicationID, actorID string) error {
	ids, err := s.ReplicaSet(ctx, replicationID)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if id == actorID {
			return nil
		}
	}

	ids = append(ids, actorID)

	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO replicas (replication_id, actor_ids) VALUES ($1, $2)
ON CONFLICT (replication_id) DO UPDATE SET actor_ids = EXCLUDED.actor_ids
`
	_, err = s.pool.Exec(ctx, q, replicationID, raw)
	if err != nil {
		return fmt.Errorf("store: add replica %s: %w", replicationID, err)
	}

	return nil
}

// RemoveReplica deletes `replica-<replicationID>` entirely.
func (s *Store) RemoveReplica(ctx context.Context, replicationID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM replicas WHERE replication_id = $1`, replicationID)
	if err != nil {
		return fmt.Errorf("store: remove replica %s: %w", replicationID, err)
	}

	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
