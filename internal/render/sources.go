package render

import "github.com/ca-srg/tripintel/internal/types"

// ExtractSources returns the complete web citations of a candidate in
// upstream order. Entries missing either uri or title are dropped.
//
// groundingAttributions is authoritative; groundingChunks is read only when
// the response has no attributions at all.
func ExtractSources(candidate *types.Candidate) []types.Source {
	if candidate == nil || candidate.GroundingMetadata == nil {
		return nil
	}
	meta := candidate.GroundingMetadata

	var sources []types.Source
	if len(meta.GroundingAttributions) > 0 {
		for _, attribution := range meta.GroundingAttributions {
			if attribution.Web == nil {
				continue
			}
			sources = appendComplete(sources, attribution.Web.URI, attribution.Web.Title)
		}
		return sources
	}

	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		sources = appendComplete(sources, chunk.Web.URI, chunk.Web.Title)
	}
	return sources
}

func appendComplete(sources []types.Source, uri, title string) []types.Source {
	if uri == "" || title == "" {
		return sources
	}
	return append(sources, types.Source{URI: uri, Title: title})
}
