package normalize

// builtin is the master alias table. Order matters only for ties between
// aliases of equal length.
var builtin = []Alias{
	// Verduras
	{"tomate", "tomate"},
	{"lechuga", "lechuga"},
	{"zanahoria", "zanahoria"},
	{"papa", "papa"},
	{"cebolla", "cebolla"},
	{"morron", "morron"},
	{"morrón", "morron"},
	{"zapallo", "zapallo"},
	{"acelga", "acelga"},
	{"espinaca", "espinaca"},
	{"brócoli", "brocoli"},
	{"brocoli", "brocoli"},
	{"coli", "brocoli"},
	{"berenjena", "berenjena"},
	{"calabaza", "calabaza"},
	{"pepino", "pepino"},
	{"remolacha", "remolacha"},
	{"batata", "batata"},
	{"choclo", "choclo"},

	// Carnes
	{"asado de tira", "asado_de_tira"},
	{"asado", "asado_de_tira"},
	{"vacio", "vacio"},
	{"vacío", "vacio"},
	{"bife de chorizo", "bife_de_chorizo"},
	{"lomo", "lomo"},
	{"cuadril", "cuadril"},
	{"roast beef", "roast_beef"},
	{"falda", "falda"},
	{"matambre", "matambre"},
	{"entraña", "entrana"},
	{"carne picada", "carne_picada"},
	{"carne picada especial", "carne_picada"},
	{"bondiola", "bondiola"},
	{"costillas", "costillas"},
	{"lomo de cerdo", "lomo_cerdo"},
	{"jamón fresco", "jamon"},
	{"jamon fresco", "jamon"},
	{"panceta", "panceta"},

	// Aves
	{"pollo entero", "pollo"},
	{"pollo", "pollo"},
	{"pechuga", "pechuga"},
	{"muslo", "muslo"},
	{"ala", "ala"},
	{"patamuslo", "patamuslo"},
	{"supremas", "supremas"},

	// Pescados y mariscos
	{"merluza fresca", "merluza"},
	{"merluza", "merluza"},
	{"salmón rosado", "salmon"},
	{"salmon", "salmon"},
	{"corvina", "corvina"},
	{"lenguado", "lenguado"},
	{"pejerrey", "pejerrey"},
	{"filet de abadejo", "abadejo"},
	{"abadejo", "abadejo"},
	{"calamar limpio", "calamar"},
	{"calamar", "calamar"},
	{"mejillones", "mejillones"},
}
