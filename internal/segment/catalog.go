package segment

// Segment keys in catalog order. Pools are always built in this order.
const (
	Construction = "A_CONSTRUCAO_SERVICOS_LAR"
	Restaurants  = "B_RESTAURACAO_CAFES_PASTELARIAS"
	Beauty       = "C_CABELEIREIROS_BARBEARIAS_ESTETICA"
	Automotive   = "D_OFICINAS_AUTO_PNEUS_SERVICOS_AUTO"
	Grocery      = "E_MERCEARIAS_MERCADOS_PADARIAS"
	Retail       = "F_LOJAS_ROUPA_CALCADO_DECORACAO"
	Health       = "G_CLINICAS_SAUDE_WELLNESS"
	Lodging      = "H_ALOJAMENTO_LOCAL_HOTEIS"
	Education    = "I_ESCOLAS_CURSOS_CENTROS_ESTUDO"
	Professional = "J_PROFISSIONAIS_LIBERAIS_SERVICOS"
)

type Meta struct {
	Key   string `json:"key"`
	Short string `json:"short"`
	Label string `json:"label"`
}

var catalog = []Meta{
	{Construction, "A", "Construção & serviços técnicos para o lar"},
	{Restaurants, "B", "Restauração, cafés & pastelarias"},
	{Beauty, "C", "Cabeleireiros, barbearias & estética"},
	{Automotive, "D", "Oficinas, pneus & serviços auto"},
	{Grocery, "E", "Mercearias, mercados, talhos, padarias"},
	{Retail, "F", "Lojas de roupa, calçado, decoração, mobiliário"},
	{Health, "G", "Clínicas de saúde & wellness"},
	{Lodging, "H", "Alojamento local & hotéis pequenos"},
	{Education, "I", "Escolas, cursos & centros de estudo"},
	{Professional, "J", "Profissionais liberais & serviços"},
}

// Keys returns the ten segment keys in catalog order.
func Keys() []string {
	out := make([]string, len(catalog))
	for i, m := range catalog {
		out[i] = m.Key
	}
	return out
}

// Catalog returns metadata for every segment.
func Catalog() []Meta {
	out := make([]Meta, len(catalog))
	copy(out, catalog)
	return out
}

func Valid(key string) bool {
	_, ok := Lookup(key)
	return ok
}

// Lookup resolves a full key or its single-letter short form.
func Lookup(key string) (Meta, bool) {
	for _, m := range catalog {
		if m.Key == key || m.Short == key {
			return m, true
		}
	}
	return Meta{}, false
}
