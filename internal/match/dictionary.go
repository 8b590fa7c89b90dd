package match

import "strings"

// Dictionary expands a search keyword into the set of terms a notice may
// actually use for the same concept, across the publication languages.
type Dictionary interface {
	Expand(keyword string) []string
}

// maxSubstringExpansions caps fallback expansion so a short generic
// keyword ("bouw") cannot drag in half the dictionary.
const maxSubstringExpansions = 3

// synonymGroups holds the multilingual procurement vocabulary. Each group
// lists equivalent terms in Dutch, French, German and English; expansion
// of any member yields the whole group.
var synonymGroups = [][]string{
	{"wegenwerken", "travaux routiers", "straßenbau", "road works", "wegenbouw"},
	{"bouw", "construction", "bau", "bouwwerken", "travaux de construction"},
	{"renovatie", "rénovation", "renovierung", "renovation", "verbouwing"},
	{"sloop", "démolition", "abbruch", "demolition", "sloopwerken"},
	{"schilderwerken", "travaux de peinture", "malerarbeiten", "painting works"},
	{"dakwerken", "travaux de toiture", "dacharbeiten", "roofing works"},
	{"elektriciteit", "électricité", "elektrizität", "electricity", "elektrische installaties", "installations électriques"},
	{"verwarming", "chauffage", "heizung", "heating", "hvac"},
	{"sanitair", "sanitaire", "sanitär", "plumbing", "loodgieterij"},
	{"schoonmaak", "nettoyage", "reinigung", "cleaning", "schoonmaakdiensten", "services de nettoyage"},
	{"onderhoud", "entretien", "wartung", "maintenance", "maintenance services"},
	{"bewaking", "gardiennage", "bewachung", "security services", "beveiliging", "sécurité"},
	{"catering", "restauration", "verpflegung", "maaltijden", "repas"},
	{"vervoer", "transport", "beförderung", "transportation", "transportdiensten"},
	{"afvalinzameling", "collecte de déchets", "abfallsammlung", "waste collection", "afvalverwerking", "traitement des déchets"},
	{"software", "logiciel", "programmatur", "informatica", "informatique", "it-diensten", "services informatiques"},
	{"consultancy", "conseil", "beratung", "consulting", "adviesdiensten", "services de conseil"},
	{"opleiding", "formation", "ausbildung", "training", "vorming"},
	{"verzekering", "assurance", "versicherung", "insurance", "verzekeringsdiensten"},
	{"drukwerk", "impression", "druckerei", "printing", "drukdiensten"},
	{"meubilair", "mobilier", "möbel", "furniture", "kantoormeubilair", "mobilier de bureau"},
	{"voertuigen", "véhicules", "fahrzeuge", "vehicles", "wagenpark"},
	{"medisch materiaal", "matériel médical", "medizinisches material", "medical equipment", "medische apparatuur"},
	{"geneesmiddelen", "médicaments", "arzneimittel", "pharmaceuticals", "farmaceutische producten"},
	{"laboratorium", "laboratoire", "labor", "laboratory", "labo"},
	{"kantoorbenodigdheden", "fournitures de bureau", "büromaterial", "office supplies"},
	{"energie", "énergie", "energie", "energy", "elektriciteitslevering", "fourniture d'électricité"},
	{"gas", "gaz", "erdgas", "natural gas", "aardgas"},
	{"water", "eau", "wasser", "waterlevering", "distribution d'eau"},
	{"riolering", "égouts", "kanalisation", "sewerage", "rioolwerken"},
	{"groenonderhoud", "entretien des espaces verts", "grünpflege", "landscaping", "groenvoorziening", "espaces verts"},
	{"studie", "étude", "studie", "study", "studieopdracht", "marché d'étude"},
	{"architectuur", "architecture", "architektur", "architect", "architecte"},
	{"ingenieursdiensten", "services d'ingénierie", "ingenieurdienstleistungen", "engineering services", "engineering"},
	{"telecommunicatie", "télécommunications", "telekommunikation", "telecommunications", "telecom"},
	{"bruggen", "ponts", "brücken", "bridges", "kunstwerken"},
	{"asfalt", "asphalte", "asphalt", "asfaltering", "asphaltage"},
	{"verlichting", "éclairage", "beleuchtung", "lighting", "openbare verlichting", "éclairage public"},
	{"signalisatie", "signalisation", "beschilderung", "signage", "wegmarkering", "marquage routier"},
	{"fietspad", "piste cyclable", "radweg", "cycle path", "fietspaden", "pistes cyclables"},
}

// StaticDictionary is the built-in, in-memory implementation. Lookup is
// exact (case-insensitive) against every term in every group; when the
// keyword matches no group at all, a bounded substring pass catches
// compounds like "wegenwerken fase 2".
type StaticDictionary struct {
	index map[string][]string
}

func NewStaticDictionary() *StaticDictionary {
	d := &StaticDictionary{index: make(map[string][]string)}
	for _, group := range synonymGroups {
		for _, term := range group {
			key := strings.ToLower(term)
			d.index[key] = append(d.index[key], group...)
		}
	}
	return d
}

// Expand returns the keyword itself plus its synonyms, lowercased and
// deduplicated. The keyword is always the first element, so a caller that
// ignores expansion still behaves sensibly.
func (d *StaticDictionary) Expand(keyword string) []string {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return nil
	}

	seen := map[string]bool{kw: true}
	out := []string{kw}
	add := func(terms []string) {
		for _, t := range terms {
			t = strings.ToLower(t)
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}

	if group, ok := d.index[kw]; ok {
		add(group)
		return out
	}

	// Substring fallback for compound keywords.
	expanded := 0
	for _, group := range synonymGroups {
		if expanded >= maxSubstringExpansions {
			break
		}
		for _, term := range group {
			if strings.Contains(kw, strings.ToLower(term)) {
				add(group)
				expanded++
				break
			}
		}
	}
	return out
}
