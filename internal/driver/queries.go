package driver

const (
	SaveTopicQuery = `
		MERGE (t:Topic {id: $id})
		SET t.label = $label,
			t.normalized_label = $normalized_label,
			t.claim_count = $claim_count,
			t.document_count = $document_count
		RETURN t.id AS id
	`

	SaveRelationshipQuery = `
		MATCH (source:Topic {id: $source_id})
		MATCH (target:Topic {id: $target_id})
		MERGE (source)-[r:RELATED {id: $id}]->(target)
		SET r.kind = $kind,
			r.weight = $weight
		RETURN r.id AS id
	`

	DeleteTopicQuery = `
		MATCH (t:Topic {id: $id})
		DETACH DELETE t
	`
)
