package elasticsearch

// DefaultIndexName is the listings index used when none is configured. The
// taxonomy index is named after it with taxonomySuffix.
const DefaultIndexName = "laas_listings"

const taxonomySuffix = "_taxonomy"

// Text fields carry a wildcard subfield "sub" for case-insensitive
// substring matching, which the analyzed field alone cannot express.
func listingMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "id":           { "type": "keyword" },
      "tenant_id":    { "type": "keyword" },
      "owner_id":     { "type": "keyword" },
      "schema_id":    { "type": "keyword" },
      "title":        { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 512 }, "sub": { "type": "wildcard" } } },
      "description":  { "type": "text", "fields": { "sub": { "type": "wildcard" } } },
      "slug":         { "type": "keyword" },
      "address":      { "type": "text", "fields": { "sub": { "type": "wildcard" } } },
      "city":         { "type": "keyword", "fields": { "sub": { "type": "wildcard" } } },
      "state":        { "type": "keyword", "fields": { "sub": { "type": "wildcard" } } },
      "country":      { "type": "keyword" },
      "postal_code":  { "type": "keyword" },
      "latitude":     { "type": "double" },
      "longitude":    { "type": "double" },
      "location":     { "type": "geo_point" },
      "status":       { "type": "keyword" },
      "is_public":    { "type": "boolean" },
      "is_verified":  { "type": "boolean" },
      "is_featured":  { "type": "boolean" },
      "price":        { "type": "double" },
      "currency":     { "type": "keyword" },
      "created_at":   { "type": "date" },
      "updated_at":   { "type": "date" },
      "published_at": { "type": "date" },
      "category_ids": { "type": "keyword" },
      "tag_ids":      { "type": "keyword" },
      "media":        { "type": "object", "enabled": false },
      "review_count": { "type": "integer" },
      "rating":       { "type": "double" }
    }
  }
}`
}

func taxonomyMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "id":        { "type": "keyword" },
      "tenant_id": { "type": "keyword" },
      "kind":      { "type": "keyword" },
      "slug":      { "type": "keyword" },
      "name":      { "type": "keyword", "fields": { "sub": { "type": "wildcard" } } },
      "active":    { "type": "boolean" }
    }
  }
}`
}
