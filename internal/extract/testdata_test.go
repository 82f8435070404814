package extract

const jsonLDGraphPage = `<!doctype html>
<html><head>
<script type="application/ld+json">
{"@context":"https://schema.org","@graph":[
  {"@type":"WebSite","name":"Recipes"},
  {"@type":["Recipe","NewsArticle"],
   "name":"World's Best Lasagna",
   "description":"A classic.",
   "prepTime":"PT30M","cookTime":"PT2H30M","totalTime":"PT3H15M",
   "recipeYield":["12","12 servings"],
   "recipeCuisine":["Italian"],
   "keywords":"pasta, comfort food",
   "recipeIngredient":["1 pound sweet Italian sausage","¾ pound lean ground beef","½ cup minced onion"],
   "recipeInstructions":[
     {"@type":"HowToSection","name":"Sauce","itemListElement":[
       {"@type":"HowToStep","text":"Cook sausage, beef, and onion over medium heat."},
       {"@type":"HowToStep","text":"Stir in tomatoes and simmer."}]},
     {"@type":"HowToStep","text":"Layer and bake."}
   ]}
]}
</script></head><body><h1>World's Best Lasagna</h1></body></html>`

const jsonLDArrayPage = `<html><head>
<script type="application/ld+json">not json at all</script>
<script type="application/ld+json">[{"@type":"Organization"},{"@type":"Recipe","name":"Pancakes",
"recipeIngredient":["1 cup flour","1 egg"],"recipeInstructions":"Mix. Fry.","recipeYield":4}]</script>
</head><body></body></html>`

const microdataPage = `<html><body>
<div itemscope itemtype="http://schema.org/Recipe">
  <h1 itemprop="name">Grandma's Cookies</h1>
  <meta itemprop="prepTime" content="PT15M">
  <span itemprop="recipeYield">Makes 24 cookies</span>
  <ul>
    <li itemprop="recipeIngredient">2 cups flour</li>
    <li itemprop="recipeIngredient">1 cup butter</li>
    <li itemprop="recipeIngredient">1 cup sugar</li>
  </ul>
  <div itemprop="recipeInstructions"><p>Cream butter and sugar.</p><p>Add flour and bake.</p></div>
</div></body></html>`

const adapterPage = `<html><body>
<h1 class="entry-title">Smitten Shortbread</h1>
<div class="servings">Serves 8</div>
<div class="time">1 hr 15 mins</div>
<ul class="ingredients"><li>2 cups flour</li><li>1 cup butter</li><li>½ cup sugar</li></ul>
<ol class="steps"><li>Mix.</li><li>Press into pan.</li><li>Bake.</li></ol>
</body></html>`

const blogPage = `<html><body><nav>Home About</nav><article>
<h2>My trip and a great soup recipe</h2>
<p>Ingredients: 2 cups stock, 1 tbsp butter, onions. Cook the onions for 10 minutes, then mix in stock.
Prep time 5 minutes. Servings: 2. This recipe is easy to bake or simmer.</p>
</article><footer>copyright</footer><script>track()</script></body></html>`

const nonRecipePage = `<html><body><p>Welcome to my blog about cars.</p></body></html>`
