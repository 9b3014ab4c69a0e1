package document

import "github.com/Aman-CERP/docingest/internal/record"

// ExcludedMetadataKey never reaches the attributes.
const ExcludedMetadataKey = "Deployment Approach"

// MetadataPrefix is prepended to every flattened metadata key.
const MetadataPrefix = "metadata_"

// Normalize flattens rec's metadata into attributes.
//
// Each metadata key except ExcludedMetadataKey becomes metadata_<key>; lists are
// joined with ", ". url, title, path and scraped_at are copied verbatim, absent
// ones as "".
func Normalize(rec record.Record) Attributes {
	attrs := make(Attributes, len(rec.Metadata)+4)

	for _, f := range rec.Metadata {
		if f.Key == ExcludedMetadataKey {
			continue
		}
		attrs[MetadataPrefix+f.Key] = f.Value.String()
	}

	attrs[AttrURL] = rec.URL
	attrs[AttrTitle] = rec.Title
	attrs[AttrPath] = rec.Path
	attrs[AttrScrapedAt] = rec.ScrapedAt

	return attrs
}
